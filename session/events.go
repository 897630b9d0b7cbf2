package session

import "skypager/lifecycle"

// External input events. Producers (control API, OS signal watcher,
// jetstream notifier) post these; the session loop consumes them in
// arrival order on a single goroutine.

// AppForegroundEvent reports the host process moving between foreground
// and background.
type AppForegroundEvent struct {
	Foreground bool
}

// ScreenFocusEvent reports the hosting screen gaining or losing focus.
type ScreenFocusEvent struct {
	Focused bool
}

// SelectPageEvent selects a page by index (0 = main feed).
type SelectPageEvent struct {
	Index int
}

// SoftResetEvent asks the currently active page to scroll to top and
// force-refresh. Any origin may emit it.
type SoftResetEvent struct{}

// PinnedFeedsEvent carries a new ordered pinned-feed URI sequence to
// reconcile against the live controllers.
type PinnedFeedsEvent struct {
	URIs []string
}

// ReloadPinnedEvent asks the session to re-read the pinned feed set
// from its configuration source and reconcile.
type ReloadPinnedEvent struct{}

// RemoteActivityEvent hints that new content may exist upstream, e.g.
// from the jetstream watcher. The active page runs an immediate gated
// probe; no page state is touched directly.
type RemoteActivityEvent struct {
	DID string
}

// Internal events.

type pollTickEvent struct {
	page *page
}

type resultEvent struct {
	page *page
	res  lifecycle.Result
}

type statusRequestEvent struct {
	reply chan Status
}
