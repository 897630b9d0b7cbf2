package poller_test

import (
	"skypager/models"
	"skypager/poller"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// manualTicker is driven by the test instead of the wall clock.
type manualTicker struct {
	ch      chan time.Time
	stopped bool
}

func (t *manualTicker) Chan() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() { t.stopped = true }

type manualClock struct {
	tickers []*manualTicker
}

func (c *manualClock) NewTicker(d time.Duration) poller.Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *manualClock) tick() {
	c.tickers[len(c.tickers)-1].ch <- time.Now()
}

func focused() models.FocusState {
	return models.FocusState{AppForeground: true, ScreenFocused: true, PageFocused: true}
}

func TestShouldPoll(t *testing.T) {
	tests := []struct {
		name     string
		focus    models.FocusState
		loading  bool
		expected bool
	}{
		{
			name:     "focused and idle",
			focus:    focused(),
			loading:  false,
			expected: true,
		},
		{
			name:     "focused but loading",
			focus:    focused(),
			loading:  true,
			expected: false,
		},
		{
			name:     "app backgrounded",
			focus:    models.FocusState{ScreenFocused: true, PageFocused: true},
			loading:  false,
			expected: false,
		},
		{
			name:     "screen blurred",
			focus:    models.FocusState{AppForeground: true, PageFocused: true},
			loading:  false,
			expected: false,
		},
		{
			name:     "another page selected",
			focus:    models.FocusState{AppForeground: true, ScreenFocused: true},
			loading:  false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := poller.New(models.MainFeed(), time.Second, &manualClock{},
				func() models.FocusState { return tt.focus },
				func() bool { return tt.loading },
				func() {},
			)
			assert.Equal(t, tt.expected, s.ShouldPoll())
		})
	}
}

func TestArmedTickerInvokesOnTick(t *testing.T) {
	clock := &manualClock{}
	ticks := make(chan struct{}, 8)
	s := poller.New(models.MainFeed(), time.Second, clock,
		focused,
		func() bool { return false },
		func() { ticks <- struct{}{} },
	)

	s.Arm()
	assert.True(t, s.Armed())

	clock.tick()
	clock.tick()

	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatal("expected a tick to reach onTick")
		}
	}
	s.Disarm()
}

func TestArmIsIdempotent(t *testing.T) {
	clock := &manualClock{}
	s := poller.New(models.MainFeed(), time.Second, clock,
		focused,
		func() bool { return false },
		func() {},
	)

	s.Arm()
	s.Arm()

	assert.Len(t, clock.tickers, 1)
	s.Disarm()
}

func TestDisarmStopsTickerAndIsIdempotent(t *testing.T) {
	clock := &manualClock{}
	s := poller.New(models.MainFeed(), time.Second, clock,
		focused,
		func() bool { return false },
		func() {},
	)

	s.Arm()
	s.Disarm()

	assert.False(t, s.Armed())
	assert.True(t, clock.tickers[0].stopped)
	assert.NotPanics(t, func() { s.Disarm() })
}

func TestRearmAfterDisarmUsesFreshTicker(t *testing.T) {
	clock := &manualClock{}
	ticks := make(chan struct{}, 8)
	s := poller.New(models.MainFeed(), time.Second, clock,
		focused,
		func() bool { return false },
		func() { ticks <- struct{}{} },
	)

	s.Arm()
	s.Disarm()
	s.Arm()
	defer s.Disarm()

	assert.Len(t, clock.tickers, 2)

	clock.tick()
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("expected the rearmed ticker to deliver")
	}
}

func TestZeroIntervalFallsBackToDefault(t *testing.T) {
	// Constructed only; a scheduler with a broken interval must still
	// arm against the wall clock without panicking.
	s := poller.New(models.MainFeed(), 0, nil,
		focused,
		func() bool { return false },
		func() {},
	)
	s.Arm()
	assert.True(t, s.Armed())
	s.Disarm()
}
