// Package pager owns the page set of the home surface: the contract a
// feed controller must satisfy, the activation tracker that knows which
// page is selected, and the reconciler that maps the pinned-feed
// configuration onto live controllers.
package pager

import (
	"context"

	"skypager/models"
)

// Controller is the contract for one feed's fetch/cache state. The pager
// only decides when to invoke these operations; fetching, caching and
// error reporting are owned by the implementation. A controller is bound
// permanently to one descriptor and is never rebound.
type Controller interface {
	// Descriptor returns the feed identity this controller is bound to.
	Descriptor() models.FeedDescriptor

	// Setup performs one-time initialization before first use.
	Setup(ctx context.Context) error

	// RegisterListeners registers the controller's content-change
	// listeners and returns a single teardown handle.
	RegisterListeners() (teardown func())

	// CheckForLatest probes for new content and marks HasNewLatest.
	// It never replaces displayed content.
	CheckForLatest(ctx context.Context) error

	// Refresh unconditionally reloads and replaces displayed content.
	Refresh(ctx context.Context) error

	// Update merges content that accumulated while the page was
	// unfocused into the displayed set.
	Update(ctx context.Context) error

	IsLoading() bool
	IsRefreshing() bool
	HasContent() bool
	HasNewLatest() bool
}

// Factory constructs a controller bound to the given descriptor.
type Factory func(desc models.FeedDescriptor) Controller
