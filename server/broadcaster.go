package server

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Notice is one session transition republished to SSE clients.
type Notice struct {
	Kind    string    `json:"kind"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// Broadcaster fans session notices out to connected SSE clients.
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan Notice
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan Notice),
	}
}

// Publish sends a notice to every client. Sends are non-blocking; a
// client that cannot keep up misses notices rather than stalling the
// session observer.
func (b *Broadcaster) Publish(kind string, payload any) {
	b.RLock()
	defer b.RUnlock()

	notice := Notice{Kind: kind, Payload: payload, Time: time.Now()}
	for id, client := range b.clients {
		select {
		case client <- notice:
		default:
			log.Warnf("Client channel full, skipping notice for client: %v", id)
		}
	}
}

func (b *Broadcaster) AddClient(key string, client chan Notice) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}
