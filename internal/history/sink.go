// internal/history/sink.go
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"medreminder/internal/channels"
	"medreminder/internal/common/logger"
	"medreminder/internal/notify"
)

// Entry is one channel outcome of one reminder firing, indexed so the
// user-facing layer can show recent reminder activity.
type Entry struct {
	EventID      string    `json:"eventId"`
	MedicationID string    `json:"medicationId"`
	UserID       string    `json:"userId"`
	Medication   string    `json:"medication"`
	Slot         string    `json:"slot"`
	Channel      string    `json:"channel"`
	Outcome      string    `json:"outcome"`
	Detail       string    `json:"detail,omitempty"`
	ProviderID   string    `json:"providerId,omitempty"`
	Trigger      string    `json:"trigger"`
	FiredAt      time.Time `json:"firedAt"`
	RecordedAt   time.Time `json:"recordedAt"`
}

// Sink indexes delivery outcomes into Elasticsearch. It is best effort,
// like the fan-out itself: indexing failures are logged and swallowed.
type Sink struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewSink(es *elasticsearch.Client, index string, log logger.Logger) *Sink {
	return &Sink{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "delivery-history"}),
	}
}

// Record indexes one entry per channel result.
func (s *Sink) Record(ctx context.Context, ev notify.Event, results []channels.Result) {
	now := time.Now().UTC()

	for i, res := range results {
		entry := Entry{
			EventID:      ev.ID,
			MedicationID: ev.MedicationID,
			UserID:       ev.UserID,
			Medication:   ev.Name,
			Slot:         ev.Time,
			Channel:      res.Channel,
			Outcome:      string(res.Outcome),
			Detail:       res.Detail,
			ProviderID:   res.ProviderID,
			Trigger:      ev.Trigger,
			FiredAt:      ev.FiredAt,
			RecordedAt:   now,
		}

		payload, err := json.Marshal(entry)
		if err != nil {
			s.logger.Warn("history entry marshal failed", map[string]interface{}{
				"eventId": ev.ID,
				"error":   err.Error(),
			})
			continue
		}

		docID := fmt.Sprintf("%s-%d", ev.ID, i)
		rsp, err := s.es.Index(s.index, bytes.NewReader(payload),
			s.es.Index.WithContext(ctx),
			s.es.Index.WithDocumentID(docID),
		)
		if err != nil {
			s.logger.Warn("history index failed", map[string]interface{}{
				"eventId": ev.ID,
				"error":   err.Error(),
			})
			continue
		}
		if rsp.IsError() {
			s.logger.Warn("history index failed", map[string]interface{}{
				"eventId": ev.ID,
				"status":  rsp.Status(),
			})
		}
		rsp.Body.Close()
	}
}
