// Package poller runs the periodic "check for new content" timer for
// one feed page, gated on the page's focus state.
package poller

import (
	"time"

	log "github.com/sirupsen/logrus"

	"skypager/models"
)

// DefaultInterval is how often an armed scheduler fires.
const DefaultInterval = 30 * time.Second

// Ticker abstracts time.Ticker so tests can drive ticks manually.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Clock creates tickers. SystemClock is used outside of tests.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type systemTicker struct {
	*time.Ticker
}

func (t systemTicker) Chan() <-chan time.Time { return t.C }

type systemClock struct{}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

// SystemClock is the wall-clock implementation of Clock.
var SystemClock Clock = systemClock{}

// Scheduler owns the repeating poll timer for one page. Arm and Disarm
// are called by the page's lifecycle coordinator exactly on the
// page-visibility transitions; ticks invoke onTick, which must route
// back onto the session goroutine before touching any state.
type Scheduler struct {
	feed     models.FeedDescriptor
	interval time.Duration
	clock    Clock

	// focus reads the authoritative focus flags and loading state at
	// poll time. Neither is ever cached here.
	focus   func() models.FocusState
	loading func() bool

	onTick func()

	ticker Ticker
	done   chan struct{}
}

func New(feed models.FeedDescriptor, interval time.Duration, clock Clock, focus func() models.FocusState, loading func() bool, onTick func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{
		feed:     feed,
		interval: interval,
		clock:    clock,
		focus:    focus,
		loading:  loading,
		onTick:   onTick,
	}
}

// ShouldPoll reports whether a periodic probe may run right now: the
// app is foregrounded, the hosting screen and this page are focused,
// and the controller is not already loading.
func (s *Scheduler) ShouldPoll() bool {
	return s.focus().All() && !s.loading()
}

// Armed reports whether the poll timer is currently running.
func (s *Scheduler) Armed() bool {
	return s.ticker != nil
}

// Arm starts the poll timer. Arming an armed scheduler is a no-op so
// that a focus-gain edge observed twice cannot leak a ticker.
func (s *Scheduler) Arm() {
	if s.ticker != nil {
		return
	}
	log.WithFields(log.Fields{
		"feed":     s.feed.String(),
		"interval": s.interval,
	}).Debug("Arming poll timer")

	s.ticker = s.clock.NewTicker(s.interval)
	s.done = make(chan struct{})
	go s.run(s.ticker, s.done)
}

// Disarm stops the poll timer synchronously. Ticks already delivered to
// onTick may still be in flight on the session channel; the gated poll
// action re-checks focus, so a late tick is harmless.
func (s *Scheduler) Disarm() {
	if s.ticker == nil {
		return
	}
	log.WithFields(log.Fields{
		"feed": s.feed.String(),
	}).Debug("Disarming poll timer")

	s.ticker.Stop()
	close(s.done)
	s.ticker = nil
	s.done = nil
}

func (s *Scheduler) run(ticker Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			s.onTick()
		}
	}
}
