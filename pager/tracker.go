package pager

import (
	log "github.com/sirupsen/logrus"

	"skypager/shell"
)

// Tracker records which page index is currently selected and keeps the
// derived shell flags in sync. Page 0 is always the main feed.
type Tracker struct {
	shell    *shell.Shell
	selected int
}

func NewTracker(sh *shell.Shell) *Tracker {
	t := &Tracker{shell: sh}
	t.recompute()
	return t
}

func (t *Tracker) SelectedPage() int { return t.selected }

// SetSelectedPage records the newly selected page and recomputes the
// derived shell flags.
func (t *Tracker) SetSelectedPage(index int) {
	if index < 0 {
		log.Warnf("Ignoring negative page index %d", index)
		return
	}
	t.selected = index
	t.recompute()
}

// OnScreenFocusGained recomputes the derived flags when the hosting
// screen regains focus.
func (t *Tracker) OnScreenFocusGained() {
	t.recompute()
}

// recompute derives the shell flags from the selected page: auxiliary
// navigation is locked whenever a non-main page is selected, and any
// minimal display mode is cleared.
func (t *Tracker) recompute() {
	t.shell.SetAuxiliaryNavigationLocked(t.selected != 0)
	t.shell.SetMinimalDisplayMode(false)
}
