package pager

import (
	"context"
	"slices"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"skypager/models"
)

// Reconciler diffs the desired pinned-feed configuration against the
// live custom-feed controllers. The comparison is ordered and
// structural: reordering counts as a change. On any change the whole
// controller array is rebuilt in the new order and the selected page
// resets to the main feed. No attempt is made to carry an old
// controller over to a new entry with the same URI; losing scroll and
// cache continuity on a configuration change is part of the contract.
type Reconciler struct {
	factory Factory
	tracker *Tracker
	custom  []Controller
}

func NewReconciler(factory Factory, tracker *Tracker) *Reconciler {
	return &Reconciler{factory: factory, tracker: tracker}
}

// Controllers returns the live custom-feed controllers in page order
// (page 1..N; the main feed at page 0 is not owned by the reconciler).
func (r *Reconciler) Controllers() []Controller {
	return r.custom
}

// Reconcile applies a new ordered pinned URI sequence. It reports
// whether the controller set was rebuilt. When the sequence is
// unchanged the existing controllers and the current page selection are
// preserved untouched.
func (r *Reconciler) Reconcile(ctx context.Context, uris []string) bool {
	current := lo.Map(r.custom, func(c Controller, _ int) string {
		return c.Descriptor().URI
	})
	if slices.Equal(current, uris) {
		log.WithFields(log.Fields{
			"feeds": len(uris),
		}).Debug("Pinned feeds unchanged, keeping controllers")
		return false
	}

	log.WithFields(log.Fields{
		"before": len(r.custom),
		"after":  len(uris),
	}).Info("Pinned feeds changed, rebuilding controllers")

	fresh := make([]Controller, 0, len(uris))
	for _, uri := range uris {
		controller := r.factory(models.CustomFeed(uri))
		if err := controller.Setup(ctx); err != nil {
			// The controller owns and reports its own errors; it is
			// still exposed so the page can surface its failure state.
			log.WithFields(log.Fields{
				"feed": uri,
			}).Errorf("Feed controller setup failed: %v", err)
		}
		fresh = append(fresh, controller)
	}

	r.custom = fresh
	r.tracker.SetSelectedPage(0)
	return true
}
