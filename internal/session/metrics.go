package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	kindState = "state"
	kindChat  = "chat"
)

var (
	eventsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_events_rejected_total",
			Help: "Inbound events dropped because they failed validation",
		},
		[]string{"channel_kind"},
	)
	eventsStale = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_events_stale_total",
			Help: "Inbound state events ignored by sequenced merging",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsRejected)
	prometheus.MustRegister(eventsStale)
}
