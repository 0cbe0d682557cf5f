// internal/medication/model.go
package medication

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Channel names shared by preferences, senders, and delivery history.
const (
	ChannelPush     = "push"
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// ChannelPrefs records which notification channels a medication opted into.
type ChannelPrefs struct {
	Push     bool `json:"push"`
	Email    bool `json:"email"`
	SMS      bool `json:"sms"`
	WhatsApp bool `json:"whatsapp"`
}

// Enabled returns the opted-in channel names in a stable order.
func (p ChannelPrefs) Enabled() []string {
	var out []string
	if p.Push {
		out = append(out, ChannelPush)
	}
	if p.Email {
		out = append(out, ChannelEmail)
	}
	if p.SMS {
		out = append(out, ChannelSMS)
	}
	if p.WhatsApp {
		out = append(out, ChannelWhatsApp)
	}
	return out
}

// Medication is the durable record owned by the store.
type Medication struct {
	ID            string       `json:"id"`
	UserID        string       `json:"userId"`
	Name          string       `json:"name"`
	Dosage        string       `json:"dosage"`
	Frequency     string       `json:"frequency,omitempty"`
	StartDate     time.Time    `json:"startDate"`
	EndDate       *time.Time   `json:"endDate,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	ReminderTimes []string     `json:"reminderTimes"` // "HH:MM", local wall clock
	IsActive      bool         `json:"isActive"`
	Channels      ChannelPrefs `json:"channels"`
	WhatsAppPhone string       `json:"whatsappPhone,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// ParseClockTime parses an "HH:MM" reminder time into hour and minute.
func ParseClockTime(value string) (hour, minute int, err error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("clock time must be HH:MM, got %q", value)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in clock time %q", value)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in clock time %q", value)
	}

	return hour, minute, nil
}

// NextOccurrence returns the next instant at which the given clock time
// occurs: today if still ahead of now, otherwise tomorrow. Times are
// evaluated against now's location; DST transitions are not normalized.
func NextOccurrence(now time.Time, value string) (time.Time, error) {
	hour, minute, err := ParseClockTime(value)
	if err != nil {
		return time.Time{}, err
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next, nil
}
