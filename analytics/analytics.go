// Package analytics is the fire-and-forget event sink. Every call is
// best effort: failures are swallowed and must never reach the
// scheduling logic that emitted the event.
package analytics

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	eventsTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skypager_analytics_events_total",
		Help: "The number of analytics events recorded, by name",
	}, []string{"event"})

	screensViewed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skypager_analytics_screens_total",
		Help: "The number of screen-view events recorded, by screen",
	}, []string{"screen"})
)

// Tracker records events to the local log and the metrics registry.
// Each process run gets a random session id so log lines from separate
// runs can be told apart.
type Tracker struct {
	sessionID string
}

func New() *Tracker {
	return &Tracker{sessionID: uuid.New().String()}
}

func (t *Tracker) Track(event string) {
	defer swallow("track")
	eventsTracked.WithLabelValues(event).Inc()
	log.WithFields(log.Fields{
		"session": t.sessionID,
		"event":   event,
	}).Debug("Analytics event")
}

func (t *Tracker) Screen(name string) {
	defer swallow("screen")
	screensViewed.WithLabelValues(name).Inc()
	log.WithFields(log.Fields{
		"session": t.sessionID,
		"screen":  name,
	}).Debug("Screen viewed")
}

func swallow(op string) {
	if r := recover(); r != nil {
		log.Debugf("Analytics %s failed: %v", op, r)
	}
}
