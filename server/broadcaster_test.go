package server_test

import (
	"skypager/server"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterPublishReachesAllClients(t *testing.T) {
	bc := server.NewBroadcaster()
	a := make(chan server.Notice, 1)
	b := make(chan server.Notice, 1)
	bc.AddClient("a", a)
	bc.AddClient("b", b)

	bc.Publish("soft-reset", nil)

	for name, client := range map[string]chan server.Notice{"a": a, "b": b} {
		select {
		case notice := <-client:
			assert.Equal(t, "soft-reset", notice.Kind)
			assert.False(t, notice.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("client %s never received the notice", name)
		}
	}
}

func TestBroadcasterSkipsFullClient(t *testing.T) {
	bc := server.NewBroadcaster()
	full := make(chan server.Notice, 1)
	full <- server.Notice{Kind: "stale"}
	bc.AddClient("full", full)

	// Must not block even though the client cannot receive.
	done := make(chan struct{})
	go func() {
		bc.Publish("page-selected", 2)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full client")
	}

	notice := <-full
	assert.Equal(t, "stale", notice.Kind)
}

func TestBroadcasterRemoveClientClosesChannel(t *testing.T) {
	bc := server.NewBroadcaster()
	client := make(chan server.Notice, 1)
	bc.AddClient("a", client)

	bc.RemoveClient("a")

	_, open := <-client
	assert.False(t, open)
	assert.NotPanics(t, func() { bc.Publish("soft-reset", nil) })
}

func TestBroadcasterShutdownClosesAllClients(t *testing.T) {
	bc := server.NewBroadcaster()
	a := make(chan server.Notice, 1)
	b := make(chan server.Notice, 1)
	bc.AddClient("a", a)
	bc.AddClient("b", b)

	bc.Shutdown()

	for _, client := range []chan server.Notice{a, b} {
		_, open := <-client
		require.False(t, open)
	}
}
