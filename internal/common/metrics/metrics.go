// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_wakeups_fired_total",
			Help: "Total number of reminder wake-ups fired",
		},
		[]string{"trigger"},
	)

	ChannelSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_channel_sends_total",
			Help: "Total number of channel send attempts by outcome",
		},
		[]string{"channel", "outcome"},
	)

	FanOutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "reminder_fanout_duration_seconds",
			Help: "Duration of notification fan-out in seconds",
		},
		[]string{"trigger"},
	)

	TimersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminder_timers_active",
			Help: "Number of pending reminder timers",
		},
	)
)
