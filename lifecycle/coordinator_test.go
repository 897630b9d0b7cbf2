package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skypager/models"
	"skypager/poller"
	"skypager/shell"
)

// recordingController counts the operations the coordinator schedules.
// Operations arrive from the coordinator's worker goroutines, so all
// state is mutex guarded.
type recordingController struct {
	mu sync.Mutex

	desc            models.FeedDescriptor
	checks          int
	refreshes       int
	updates         int
	registers       int
	teardowns       int
	panicOnTeardown bool

	loading    bool
	hasContent bool
}

func (f *recordingController) Descriptor() models.FeedDescriptor { return f.desc }

func (f *recordingController) Setup(ctx context.Context) error { return nil }

func (f *recordingController) RegisterListeners() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	return func() {
		f.mu.Lock()
		panics := f.panicOnTeardown
		f.teardowns++
		f.mu.Unlock()
		if panics {
			panic("listener teardown exploded")
		}
	}
}

func (f *recordingController) CheckForLatest(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return nil
}

func (f *recordingController) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

func (f *recordingController) Update(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}

func (f *recordingController) IsLoading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *recordingController) IsRefreshing() bool { return false }

func (f *recordingController) HasContent() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasContent
}

func (f *recordingController) HasNewLatest() bool { return false }

func (f *recordingController) counts() (checks, refreshes, updates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks, f.refreshes, f.updates
}

type recordingAnalytics struct {
	events  []string
	screens []string
}

func (a *recordingAnalytics) Track(event string) { a.events = append(a.events, event) }
func (a *recordingAnalytics) Screen(name string) { a.screens = append(a.screens, name) }

type nullTicker struct{}

func (nullTicker) Chan() <-chan time.Time { return nil }
func (nullTicker) Stop() {}

type nullClock struct{}

func (nullClock) NewTicker(d time.Duration) poller.Ticker { return nullTicker{} }

// harness wires a coordinator against fakes and exposes the posted
// async results.
type harness struct {
	controller *recordingController
	shell      *shell.Shell
	analytics  *recordingAnalytics
	coord      *Coordinator

	focus   models.FocusState
	results chan Result
	scrolls int
	ticks   chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		controller: &recordingController{desc: models.MainFeed()},
		shell:      shell.New(),
		analytics:  &recordingAnalytics{},
		results:    make(chan Result, 16),
		ticks:      make(chan struct{}, 16),
	}
	h.coord = New(Config{
		Controller: h.controller,
		Shell:      h.shell,
		Focus:      func() models.FocusState { return h.focus },
		Scroller:   ScrollerFunc(func() { h.scrolls++ }),
		Analytics:  h.analytics,
		ScreenName: "Feed",
		Post:       func(res Result) { h.results <- res },
		PostTick:   func() { h.ticks <- struct{}{} },
		Clock:      nullClock{},
	})
	return h
}

// awaitResult blocks until one async operation completes and, like the
// session loop would, hands the result back to the coordinator.
func (h *harness) awaitResult(t *testing.T) Result {
	t.Helper()
	select {
	case res := <-h.results:
		h.coord.HandleResult(res)
		return res
	case <-time.After(time.Second):
		t.Fatal("expected an async result")
		return Result{}
	}
}

func (h *harness) assertNoResult(t *testing.T) {
	t.Helper()
	select {
	case res := <-h.results:
		t.Fatalf("unexpected async result %s", res.Op)
	case <-time.After(50 * time.Millisecond):
	}
}

func fullFocus() models.FocusState {
	return models.FocusState{AppForeground: true, ScreenFocused: true, PageFocused: true}
}

func TestMountWithFullFocusIssuesImmediateCheck(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()

	h.coord.Mount(context.Background())

	res := h.awaitResult(t)
	assert.Equal(t, OpCheckLatest, res.Op)
	checks, _, _ := h.controller.counts()
	assert.Equal(t, 1, checks)
	assert.True(t, h.coord.PollArmed())
	assert.Equal(t, []string{"Feed"}, h.analytics.screens)
}

func TestMountWithoutFocusStaysIdle(t *testing.T) {
	h := newHarness(t)

	h.coord.Mount(context.Background())

	assert.False(t, h.coord.PollArmed())
	assert.Empty(t, h.analytics.screens)
	h.assertNoResult(t)

	// The page never subscribed, so a broadcast cannot reach it.
	h.shell.EmitSoftReset()
	assert.Zero(t, h.scrolls)
}

func TestScreenFocusMergesAccumulatedContent(t *testing.T) {
	h := newHarness(t)
	h.controller.hasContent = true
	h.focus = models.FocusState{AppForeground: true, ScreenFocused: true}

	h.coord.Mount(context.Background())

	res := h.awaitResult(t)
	assert.Equal(t, OpUpdate, res.Op)
	_, _, updates := h.controller.counts()
	assert.Equal(t, 1, updates)
	// Another page is selected; the poll timer belongs to that page.
	assert.False(t, h.coord.PollArmed())
}

func TestScreenFocusWithoutContentSkipsMerge(t *testing.T) {
	h := newHarness(t)
	h.focus = models.FocusState{AppForeground: true, ScreenFocused: true}

	h.coord.Mount(context.Background())

	h.assertNoResult(t)
}

func TestForegroundEdgeTriggersImmediateCheck(t *testing.T) {
	h := newHarness(t)
	h.focus = models.FocusState{ScreenFocused: true, PageFocused: true}
	h.coord.Mount(context.Background())
	// The screen and page gates are open; only the app is backgrounded.
	assert.True(t, h.coord.PollArmed())
	h.assertNoResult(t)

	h.focus.AppForeground = true
	h.coord.SyncFocus()

	res := h.awaitResult(t)
	assert.Equal(t, OpCheckLatest, res.Op)
}

func TestFocusEdgeFiresOncePerEdge(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	h.awaitResult(t)

	// Re-syncing an unchanged focus state is not an edge.
	h.coord.SyncFocus()
	h.assertNoResult(t)

	h.focus.AppForeground = false
	h.coord.SyncFocus()
	h.focus.AppForeground = true
	h.coord.SyncFocus()

	res := h.awaitResult(t)
	assert.Equal(t, OpCheckLatest, res.Op)
}

func TestSoftResetOnSelectedPageScrollsAndRefreshes(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	h.awaitResult(t)

	h.shell.EmitSoftReset()

	assert.Equal(t, 1, h.scrolls)
	res := h.awaitResult(t)
	assert.Equal(t, OpRefresh, res.Op)
	_, refreshes, _ := h.controller.counts()
	assert.Equal(t, 1, refreshes)
}

func TestSoftResetIgnoredOnUnselectedPage(t *testing.T) {
	h := newHarness(t)
	h.focus = models.FocusState{AppForeground: true, ScreenFocused: true}
	h.coord.Mount(context.Background())

	h.shell.EmitSoftReset()

	assert.Zero(t, h.scrolls)
	h.assertNoResult(t)
}

func TestSoftResetChecksFocusAtDeliveryTime(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	h.awaitResult(t)

	// Focus moved away after subscribing but before the broadcast.
	h.focus.PageFocused = false
	h.shell.EmitSoftReset()

	assert.Zero(t, h.scrolls)
}

func TestPollTickRunsGatedCheck(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	h.awaitResult(t)

	h.coord.PollTick()

	res := h.awaitResult(t)
	assert.Equal(t, OpCheckLatest, res.Op)
}

func TestPollTickSuppressedWhileLoading(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	h.awaitResult(t)
	h.controller.loading = true

	suppressed := testutil.ToFloat64(pollsSuppressed)
	h.coord.PollTick()

	h.assertNoResult(t)
	assert.Equal(t, suppressed+1, testutil.ToFloat64(pollsSuppressed))
}

func TestPollTickDroppedAfterPageBlur(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	h.awaitResult(t)

	h.focus.PageFocused = false
	h.coord.SyncFocus()
	// A tick that raced the disarm arrives late.
	h.coord.PollTick()

	h.assertNoResult(t)
}

func TestCheckNowRequiresFullFocus(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	h.awaitResult(t)

	h.coord.CheckNow("hint")
	res := h.awaitResult(t)
	assert.Equal(t, OpCheckLatest, res.Op)

	h.focus.AppForeground = false
	h.coord.SyncFocus()
	h.coord.CheckNow("hint")
	h.assertNoResult(t)
}

func TestScreenBlurTearsDownAndDiscardsLateResults(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	res := <-h.results // hold the edge-check result back, like a slow network

	h.focus.ScreenFocused = false
	h.coord.SyncFocus()

	assert.False(t, h.coord.PollArmed())
	h.controller.mu.Lock()
	teardowns := h.controller.teardowns
	h.controller.mu.Unlock()
	assert.Equal(t, 1, teardowns)

	// The broadcast no longer reaches the page.
	h.shell.EmitSoftReset()
	assert.Zero(t, h.scrolls)

	// The late result belongs to the closed generation.
	stale := testutil.ToFloat64(staleResults)
	h.coord.HandleResult(res)
	assert.Equal(t, stale+1, testutil.ToFloat64(staleResults))
}

func TestUnmountDiscardsLateResults(t *testing.T) {
	h := newHarness(t)
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	res := <-h.results

	h.coord.Unmount()

	assert.False(t, h.coord.Mounted())
	assert.False(t, h.coord.PollArmed())

	stale := testutil.ToFloat64(staleResults)
	h.coord.HandleResult(res)
	assert.Equal(t, stale+1, testutil.ToFloat64(staleResults))
}

func TestTeardownStepFailureDoesNotStopSiblings(t *testing.T) {
	h := newHarness(t)
	h.controller.panicOnTeardown = true
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	h.awaitResult(t)

	require.NotPanics(t, func() {
		h.focus.ScreenFocused = false
		h.coord.SyncFocus()
	})

	// The subscription and poll timer were still released.
	assert.False(t, h.coord.PollArmed())
	h.shell.EmitSoftReset()
	assert.Zero(t, h.scrolls)
}

func TestRefocusRestoresPageMachinery(t *testing.T) {
	h := newHarness(t)
	h.controller.hasContent = true
	h.focus = fullFocus()
	h.coord.Mount(context.Background())
	h.awaitResult(t) // focus merge
	h.awaitResult(t) // edge check

	h.focus.ScreenFocused = false
	h.coord.SyncFocus()
	h.focus.ScreenFocused = true
	h.coord.SyncFocus()

	assert.True(t, h.coord.PollArmed())
	assert.Equal(t, []string{"Feed", "Feed"}, h.analytics.screens)

	h.shell.EmitSoftReset()
	assert.Equal(t, 1, h.scrolls)
}
