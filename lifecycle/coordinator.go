// Package lifecycle ties a feed page's focus transitions to the
// registration and teardown of its timers, subscriptions and listeners.
package lifecycle

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"skypager/models"
	"skypager/pager"
	"skypager/poller"
	"skypager/shell"
)

var (
	feedChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skypager_feed_checks_total",
		Help: "The number of check-for-latest probes issued, by trigger",
	}, []string{"trigger"})

	pollsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skypager_polls_suppressed_total",
		Help: "The number of poll ticks suppressed by the focus gate",
	})

	staleResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skypager_stale_results_total",
		Help: "The number of async feed results discarded after focus loss",
	})

	softResets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skypager_soft_resets_total",
		Help: "The number of soft resets acted on by a focused page",
	})
)

// Op names the asynchronous controller operations the coordinator issues.
type Op string

const (
	OpCheckLatest Op = "check-latest"
	OpRefresh     Op = "refresh"
	OpUpdate      Op = "update"
)

// Result is the completion of an asynchronous controller operation. It
// is posted back to the session goroutine and handed to HandleResult.
type Result struct {
	Feed models.FeedDescriptor
	Gen  uint64
	Op   Op
	Err  error
}

// Scroller scrolls the page's content view back to the top. Rendering
// is outside this core; the collaborator is consumed by contract only.
type Scroller interface {
	ScrollToTop()
}

// ScrollerFunc adapts a function to the Scroller interface.
type ScrollerFunc func()

func (f ScrollerFunc) ScrollToTop() { f() }

// Analytics is the fire-and-forget event sink. Implementations must
// never let a failure escape into scheduling logic.
type Analytics interface {
	Track(event string)
	Screen(name string)
}

// Config wires one coordinator. Focus must read the authoritative focus
// flags for this page; Post must route the result back onto the session
// goroutine; PostTick is invoked from the poll timer goroutine and must
// do the same for PollTick.
type Config struct {
	Controller pager.Controller
	Shell      *shell.Shell
	Focus      func() models.FocusState
	Scroller   Scroller
	Analytics  Analytics
	ScreenName string
	Post       func(Result)
	PostTick   func()

	PollInterval time.Duration
	Clock        poller.Clock
}

// Coordinator is the per-page state machine Unmounted ->
// MountedUnfocused -> MountedFocused. Focus is split into two gates:
// the screen gate (mounted and the hosting screen focused) owns the
// soft-reset subscription and content listeners, while the page gate
// (screen gate plus this page selected) owns the poll timer. The
// app-foreground flag participates only in the poll gate and in the
// edge-triggered immediate check. All methods must be called from the
// session goroutine.
type Coordinator struct {
	controller pager.Controller
	shell      *shell.Shell
	focus      func() models.FocusState
	scroller   Scroller
	analytics  Analytics
	screenName string
	post       func(Result)
	scheduler  *poller.Scheduler

	ctx        context.Context
	mounted    bool
	screenGate bool
	pageGate   bool
	fullFocus  bool

	// gen is bumped whenever a gate closes; async results carrying an
	// older generation are discarded on arrival.
	gen uint64

	softResetSub      *shell.Subscription
	teardownListeners func()
}

func New(cfg Config) *Coordinator {
	c := &Coordinator{
		controller: cfg.Controller,
		shell:      cfg.Shell,
		focus:      cfg.Focus,
		scroller:   cfg.Scroller,
		analytics:  cfg.Analytics,
		screenName: cfg.ScreenName,
		post:       cfg.Post,
	}
	c.scheduler = poller.New(
		cfg.Controller.Descriptor(),
		cfg.PollInterval,
		cfg.Clock,
		cfg.Focus,
		cfg.Controller.IsLoading,
		cfg.PostTick,
	)
	return c
}

func (c *Coordinator) Controller() pager.Controller { return c.controller }

func (c *Coordinator) Mounted() bool { return c.mounted }

// PollArmed reports whether the poll timer is currently running.
func (c *Coordinator) PollArmed() bool { return c.scheduler.Armed() }

// Mount marks the page mounted and applies the current focus state.
func (c *Coordinator) Mount(ctx context.Context) {
	if c.mounted {
		return
	}
	c.ctx = ctx
	c.mounted = true
	log.WithFields(log.Fields{
		"feed": c.controller.Descriptor().String(),
	}).Debug("Page mounted")
	c.SyncFocus()
}

// Unmount tears the page down. Late async results are discarded via the
// generation counter; in-flight calls are never force-cancelled.
func (c *Coordinator) Unmount() {
	if !c.mounted {
		return
	}
	c.mounted = false
	c.SyncFocus()
	c.ctx = nil
	log.WithFields(log.Fields{
		"feed": c.controller.Descriptor().String(),
	}).Debug("Page unmounted")
}

// SyncFocus recomputes both gates from the declared inputs and performs
// the enter/leave work for any gate that flipped. It is invoked on
// every focus-affecting event rather than tracking each signal
// separately, so a missed intermediate state cannot wedge the machine.
func (c *Coordinator) SyncFocus() {
	f := c.focus()
	wantScreen := c.mounted && f.ScreenFocused
	wantPage := wantScreen && f.PageFocused
	wantFull := c.mounted && f.All()

	if wantScreen && !c.screenGate {
		c.enterScreenGate()
	}
	if wantPage && !c.pageGate {
		c.pageGate = true
		c.scheduler.Arm()
	}
	if !wantPage && c.pageGate {
		c.pageGate = false
		c.gen++
		c.scheduler.Disarm()
	}
	if !wantScreen && c.screenGate {
		c.leaveScreenGate()
	}

	// Edge-triggered immediate probe: any one focus signal turning
	// true while the other two already hold.
	if wantFull && !c.fullFocus {
		c.runAsync(OpCheckLatest, "edge")
	}
	c.fullFocus = wantFull
}

func (c *Coordinator) enterScreenGate() {
	c.screenGate = true

	c.softResetSub = c.shell.OnSoftReset(c.onSoftReset)
	c.teardownListeners = c.controller.RegisterListeners()
	c.analytics.Screen(c.screenName)

	// Merge anything that arrived while we were away. A page that has
	// never loaded leaves its first fetch to its own initial load path.
	if c.controller.HasContent() {
		c.runAsync(OpUpdate, "focus")
	}
}

func (c *Coordinator) leaveScreenGate() {
	c.screenGate = false
	c.gen++

	// Each teardown step is isolated: one failing must not stop the
	// siblings from running.
	c.teardownStep("soft reset subscription", func() {
		if c.softResetSub != nil {
			c.softResetSub.Remove()
			c.softResetSub = nil
		}
	})
	c.teardownStep("content listeners", func() {
		if c.teardownListeners != nil {
			c.teardownListeners()
			c.teardownListeners = nil
		}
	})
	c.teardownStep("poll timer", c.scheduler.Disarm)
}

func (c *Coordinator) teardownStep(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"feed": c.controller.Descriptor().String(),
				"step": name,
			}).Errorf("Teardown step failed: %v", r)
		}
	}()
	fn()
}

// onSoftReset handles a soft-reset broadcast. The focus flags are read
// at delivery time: the subscription exists for every page of a focused
// screen, but only the selected page scrolls and refreshes.
func (c *Coordinator) onSoftReset() {
	f := c.focus()
	if !c.mounted || !f.ScreenFocused || !f.PageFocused {
		return
	}
	softResets.Inc()
	log.WithFields(log.Fields{
		"feed": c.controller.Descriptor().String(),
	}).Info("Soft reset on focused page")

	c.scroller.ScrollToTop()
	c.runAsync(OpRefresh, "soft-reset")
}

// PollTick is the gated periodic poll action, routed in from the timer
// goroutine via the session channel. A tick that raced a disarm is
// dropped here.
func (c *Coordinator) PollTick() {
	if !c.pageGate {
		return
	}
	if !c.scheduler.ShouldPoll() {
		pollsSuppressed.Inc()
		return
	}
	c.runAsync(OpCheckLatest, "tick")
}

// CheckNow issues an immediate gated probe, used for remote-activity
// hints. It runs only while the page holds full focus.
func (c *Coordinator) CheckNow(trigger string) {
	if !c.mounted || !c.focus().All() {
		return
	}
	c.runAsync(OpCheckLatest, trigger)
}

// HandleResult applies the completion of an asynchronous controller
// operation. Results from a closed gate generation are discarded; the
// controller has already absorbed whatever it absorbed, the coordinator
// just stops reacting on the page's behalf.
func (c *Coordinator) HandleResult(res Result) {
	if res.Gen != c.gen || !c.screenGate {
		staleResults.Inc()
		log.WithFields(log.Fields{
			"feed": res.Feed.String(),
			"op":   string(res.Op),
		}).Debug("Discarding stale async result")
		return
	}
	if res.Err != nil {
		// The controller owns and reports its errors; the coordinator
		// only notes that the operation it scheduled did not complete.
		log.WithFields(log.Fields{
			"feed": res.Feed.String(),
			"op":   string(res.Op),
		}).Warnf("Feed operation failed: %v", res.Err)
	}
}

func (c *Coordinator) runAsync(op Op, trigger string) {
	if op == OpCheckLatest {
		feedChecks.WithLabelValues(trigger).Inc()
	}
	gen := c.gen
	ctx := c.ctx
	controller := c.controller

	go func() {
		var err error
		switch op {
		case OpCheckLatest:
			err = controller.CheckForLatest(ctx)
		case OpRefresh:
			err = controller.Refresh(ctx)
		case OpUpdate:
			err = controller.Update(ctx)
		}
		c.post(Result{Feed: controller.Descriptor(), Gen: gen, Op: op, Err: err})
	}()
}
