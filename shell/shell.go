// Package shell holds the ambient UI state shared across feed pages: the
// navigation-lock and minimal-display flags, and the process-wide
// soft-reset broadcast channel. A single Shell instance is passed by
// reference into everything that needs it; all methods must be called
// from the session goroutine.
package shell

import (
	log "github.com/sirupsen/logrus"
)

type subscriber struct {
	id      int
	handler func()
}

// Shell is the shared shell context for one running client surface.
type Shell struct {
	minimalDisplayMode  bool
	auxNavigationLocked bool

	nextID        int
	softResetSubs []subscriber
}

func New() *Shell {
	return &Shell{}
}

func (s *Shell) MinimalDisplayMode() bool { return s.minimalDisplayMode }

func (s *Shell) SetMinimalDisplayMode(v bool) { s.minimalDisplayMode = v }

func (s *Shell) AuxiliaryNavigationLocked() bool { return s.auxNavigationLocked }

func (s *Shell) SetAuxiliaryNavigationLocked(v bool) { s.auxNavigationLocked = v }

// Subscription is the handle returned to a soft-reset subscriber.
// Remove is idempotent.
type Subscription struct {
	shell *Shell
	id    int
}

func (sub *Subscription) Remove() {
	if sub.shell == nil {
		return
	}
	subs := sub.shell.softResetSubs
	for i, entry := range subs {
		if entry.id == sub.id {
			sub.shell.softResetSubs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	sub.shell = nil
}

// OnSoftReset registers a handler for the soft-reset broadcast. Handlers
// are invoked in subscription order. The handler must check its own
// focus state at delivery time; the shell delivers to every subscriber.
func (s *Shell) OnSoftReset(handler func()) *Subscription {
	s.nextID++
	s.softResetSubs = append(s.softResetSubs, subscriber{id: s.nextID, handler: handler})
	return &Subscription{shell: s, id: s.nextID}
}

// EmitSoftReset broadcasts a soft-reset signal to every current
// subscriber. A handler panicking is logged and does not stop delivery
// to the remaining subscribers.
func (s *Shell) EmitSoftReset() {
	// Snapshot so handlers can remove themselves during delivery.
	subs := make([]subscriber, len(s.softResetSubs))
	copy(subs, s.softResetSubs)

	log.WithFields(log.Fields{
		"subscribers": len(subs),
	}).Debug("Emitting soft reset")

	for _, entry := range subs {
		deliver(entry)
	}
}

func deliver(entry subscriber) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Soft reset handler %d panicked: %v", entry.id, r)
		}
	}()
	entry.handler()
}
