// Package session runs the single-goroutine event loop that coordinates
// the feed pages of the home surface. All component state is mutated
// only from this loop; producers communicate through the event channel.
package session

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"skypager/lifecycle"
	"skypager/models"
	"skypager/pager"
	"skypager/poller"
	"skypager/shell"
)

// PinnedSource exposes the user's ordered pinned feed URIs. It is
// external configuration, read-only to the session.
type PinnedSource interface {
	PinnedFeeds(ctx context.Context) ([]string, error)
}

// PinnedSourceFunc adapts a function to the PinnedSource interface.
type PinnedSourceFunc func(ctx context.Context) ([]string, error)

func (f PinnedSourceFunc) PinnedFeeds(ctx context.Context) ([]string, error) { return f(ctx) }

// Config wires a session.
type Config struct {
	Factory   pager.Factory
	Pinned    PinnedSource
	Analytics lifecycle.Analytics

	// NewScroller provides the scroll-to-top collaborator for a page.
	// Nil installs a no-op scroller.
	NewScroller func(desc models.FeedDescriptor) lifecycle.Scroller

	PollInterval time.Duration
	Clock        poller.Clock

	// Observer, when set, is told about notable transitions so a
	// status stream can republish them. Called from the loop; must not
	// block.
	Observer func(kind string, payload any)
}

type page struct {
	index int
	coord *lifecycle.Coordinator
}

// Session is the home-surface coordinator: one main feed page plus one
// page per pinned feed, in pinned order.
type Session struct {
	shell      *shell.Shell
	tracker    *pager.Tracker
	reconciler *pager.Reconciler

	factory     pager.Factory
	pinned      PinnedSource
	analytics   lifecycle.Analytics
	newScroller func(desc models.FeedDescriptor) lifecycle.Scroller
	observer    func(kind string, payload any)

	pollInterval time.Duration
	clock        poller.Clock

	appForeground bool
	screenFocused bool

	pages  []*page
	events chan any
	runCtx context.Context
}

func New(cfg Config) (*Session, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("session: controller factory is required")
	}
	if cfg.Pinned == nil {
		return nil, fmt.Errorf("session: pinned feed source is required")
	}
	if cfg.Analytics == nil {
		return nil, fmt.Errorf("session: analytics sink is required")
	}
	newScroller := cfg.NewScroller
	if newScroller == nil {
		newScroller = func(models.FeedDescriptor) lifecycle.Scroller {
			return lifecycle.ScrollerFunc(func() {})
		}
	}
	observer := cfg.Observer
	if observer == nil {
		observer = func(string, any) {}
	}

	sh := shell.New()
	tracker := pager.NewTracker(sh)

	s := &Session{
		shell:        sh,
		tracker:      tracker,
		factory:      cfg.Factory,
		pinned:       cfg.Pinned,
		analytics:    cfg.Analytics,
		newScroller:  newScroller,
		observer:     observer,
		pollInterval: cfg.PollInterval,
		clock:        cfg.Clock,
		// A freshly started client is foregrounded and its home screen
		// focused until told otherwise.
		appForeground: true,
		screenFocused: true,
		events:        make(chan any, 64),
	}
	s.reconciler = pager.NewReconciler(cfg.Factory, tracker)
	return s, nil
}

// Post queues an event for the loop. Safe from any goroutine.
func (s *Session) Post(ev any) {
	s.events <- ev
}

// Shell exposes the shared shell context (for status reporting).
func (s *Session) Shell() *shell.Shell { return s.shell }

// Run mounts the main page, reconciles the initial pinned set and then
// processes events until ctx is cancelled. It owns all state mutation.
func (s *Session) Run(ctx context.Context) error {
	s.runCtx = ctx

	main := s.factory(models.MainFeed())
	if err := main.Setup(ctx); err != nil {
		log.Errorf("Main feed setup failed: %v", err)
	}
	p := s.newPage(0, main)
	s.pages = []*page{p}
	p.coord.Mount(ctx)

	s.reloadPinned(ctx)

	log.WithFields(log.Fields{
		"pages": len(s.pages),
	}).Info("Session started")

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case AppForegroundEvent:
		if s.appForeground == ev.Foreground {
			return
		}
		s.appForeground = ev.Foreground
		s.observer("app-foreground", ev)
		s.syncAll()
	case ScreenFocusEvent:
		if s.screenFocused == ev.Focused {
			return
		}
		s.screenFocused = ev.Focused
		if ev.Focused {
			s.tracker.OnScreenFocusGained()
		}
		s.observer("screen-focus", ev)
		s.syncAll()
	case SelectPageEvent:
		if ev.Index < 0 || ev.Index >= len(s.pages) {
			log.Warnf("Ignoring selection of unknown page %d", ev.Index)
			return
		}
		s.tracker.SetSelectedPage(ev.Index)
		s.observer("page-selected", ev)
		s.syncAll()
	case SoftResetEvent:
		s.observer("soft-reset", ev)
		s.shell.EmitSoftReset()
	case PinnedFeedsEvent:
		s.applyPinned(ctx, ev.URIs)
	case ReloadPinnedEvent:
		s.reloadPinned(ctx)
	case RemoteActivityEvent:
		s.activePage().coord.CheckNow("hint")
	case pollTickEvent:
		ev.page.coord.PollTick()
	case resultEvent:
		ev.page.coord.HandleResult(ev.res)
	case statusRequestEvent:
		ev.reply <- s.snapshot()
	default:
		log.Warnf("Dropping unknown event %T", ev)
	}
}

func (s *Session) activePage() *page {
	idx := s.tracker.SelectedPage()
	if idx < 0 || idx >= len(s.pages) {
		return s.pages[0]
	}
	return s.pages[idx]
}

func (s *Session) reloadPinned(ctx context.Context) {
	uris, err := s.pinned.PinnedFeeds(ctx)
	if err != nil {
		log.Errorf("Could not read pinned feeds: %v", err)
		return
	}
	s.applyPinned(ctx, uris)
}

func (s *Session) applyPinned(ctx context.Context, uris []string) {
	if !s.reconciler.Reconcile(ctx, uris) {
		return
	}
	s.observer("pinned-reconciled", PinnedFeedsEvent{URIs: uris})

	// The old controller array was discarded wholesale; unmount its
	// pages and build fresh ones in the new order.
	for _, p := range s.pages[1:] {
		p.coord.Unmount()
	}
	s.pages = s.pages[:1]
	for i, controller := range s.reconciler.Controllers() {
		p := s.newPage(i+1, controller)
		s.pages = append(s.pages, p)
		p.coord.Mount(s.runCtx)
	}

	// Selection snapped back to the main feed; let every coordinator
	// observe its new focus state.
	s.syncAll()
}

func (s *Session) syncAll() {
	for _, p := range s.pages {
		p.coord.SyncFocus()
	}
}

func (s *Session) newPage(index int, controller pager.Controller) *page {
	p := &page{index: index}
	p.coord = lifecycle.New(lifecycle.Config{
		Controller: controller,
		Shell:      s.shell,
		Focus: func() models.FocusState {
			return models.FocusState{
				AppForeground: s.appForeground,
				ScreenFocused: s.screenFocused,
				PageFocused:   s.tracker.SelectedPage() == p.index,
			}
		},
		Scroller:   s.newScroller(controller.Descriptor()),
		Analytics:  s.analytics,
		ScreenName: "Feed",
		Post: func(res lifecycle.Result) {
			s.Post(resultEvent{page: p, res: res})
		},
		PostTick: func() {
			s.Post(pollTickEvent{page: p})
		},
		PollInterval: s.pollInterval,
		Clock:        s.clock,
	})
	return p
}

func (s *Session) shutdown() {
	log.Info("Session shutting down")
	for _, p := range s.pages {
		p.coord.Unmount()
	}
}

// PageStatus is the reported state of one page.
type PageStatus struct {
	Index      int    `json:"index"`
	Feed       string `json:"feed"`
	Kind       string `json:"kind"`
	Focused    bool   `json:"focused"`
	PollArmed  bool   `json:"pollArmed"`
	Loading    bool   `json:"loading"`
	Refreshing bool   `json:"refreshing"`
	HasContent bool   `json:"hasContent"`
	HasNew     bool   `json:"hasNewLatest"`
}

// Status is a point-in-time snapshot of the session, produced on the
// loop goroutine.
type Status struct {
	AppForeground       bool         `json:"appForeground"`
	ScreenFocused       bool         `json:"screenFocused"`
	SelectedPage        int          `json:"selectedPage"`
	AuxNavigationLocked bool         `json:"auxNavigationLocked"`
	MinimalDisplayMode  bool         `json:"minimalDisplayMode"`
	Pages               []PageStatus `json:"pages"`
}

// Status requests a snapshot from the loop and waits for it.
func (s *Session) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case s.events <- statusRequestEvent{reply: reply}:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case status := <-reply:
		return status, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (s *Session) snapshot() Status {
	status := Status{
		AppForeground:       s.appForeground,
		ScreenFocused:       s.screenFocused,
		SelectedPage:        s.tracker.SelectedPage(),
		AuxNavigationLocked: s.shell.AuxiliaryNavigationLocked(),
		MinimalDisplayMode:  s.shell.MinimalDisplayMode(),
	}
	for _, p := range s.pages {
		controller := p.coord.Controller()
		desc := controller.Descriptor()
		status.Pages = append(status.Pages, PageStatus{
			Index:      p.index,
			Feed:       desc.String(),
			Kind:       desc.Kind.String(),
			Focused:    s.tracker.SelectedPage() == p.index,
			PollArmed:  p.coord.PollArmed(),
			Loading:    controller.IsLoading(),
			Refreshing: controller.IsRefreshing(),
			HasContent: controller.HasContent(),
			HasNew:     controller.HasNewLatest(),
		})
	}
	return status
}
