// The feed controller owns one feed's fetch and cache state. The pager
// core only decides when its operations run; everything network-shaped,
// including retries, lives here.
package bluesky

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"skypager/models"
	"skypager/pager"
	"skypager/store"
)

const defaultPageSize = 30

// ControllerConfig wires a feed controller. Store is optional; without
// it the seen cursor lives only in process memory.
type ControllerConfig struct {
	Client   *Client
	Store    *store.Store
	PageSize int64
}

// FeedController implements pager.Controller against the Bluesky API.
// It is bound to one descriptor for its whole lifetime.
type FeedController struct {
	desc     models.FeedDescriptor
	client   *Client
	store    *store.Store
	pageSize int64

	mu         sync.Mutex
	items      []models.FeedItem
	lastSeen   store.Cursor
	loading    bool
	refreshing bool
	hasNew     bool
	attached   bool
}

var _ pager.Controller = (*FeedController)(nil)

// NewController builds a controller bound to desc.
func NewController(desc models.FeedDescriptor, cfg ControllerConfig) *FeedController {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &FeedController{
		desc:     desc,
		client:   cfg.Client,
		store:    cfg.Store,
		pageSize: pageSize,
	}
}

// Factory returns a pager.Factory producing controllers that share one
// client and seen store.
func Factory(cfg ControllerConfig) pager.Factory {
	return func(desc models.FeedDescriptor) pager.Controller {
		return NewController(desc, cfg)
	}
}

func (f *FeedController) Descriptor() models.FeedDescriptor { return f.desc }

// Setup restores the persisted seen cursor, if any.
func (f *FeedController) Setup(ctx context.Context) error {
	if f.store == nil {
		return nil
	}
	cursor, err := f.store.LastSeen(ctx, f.storeKey())
	if err != nil {
		return fmt.Errorf("could not restore seen cursor: %w", err)
	}
	f.mu.Lock()
	f.lastSeen = cursor
	f.mu.Unlock()
	return nil
}

// RegisterListeners attaches the controller's content-change listeners
// and returns a single teardown handle. Teardown is idempotent.
func (f *FeedController) RegisterListeners() func() {
	f.mu.Lock()
	f.attached = true
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.attached = false
			f.mu.Unlock()
		})
	}
}

func (f *FeedController) IsLoading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

func (f *FeedController) IsRefreshing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshing
}

func (f *FeedController) HasContent() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) > 0
}

func (f *FeedController) HasNewLatest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasNew
}

// CheckForLatest probes the head of the feed and marks HasNewLatest
// when it differs from the newest displayed item. Displayed content is
// never touched.
func (f *FeedController) CheckForLatest(ctx context.Context) error {
	head, err := f.fetchPage(ctx, 1)
	if err != nil {
		return err
	}
	if len(head) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	known := f.lastSeen.URI
	if len(f.items) > 0 {
		known = f.items[0].URI
	}
	if head[0].URI != known {
		f.hasNew = true
		log.WithFields(log.Fields{
			"feed": f.desc.String(),
			"head": head[0].URI,
		}).Debug("New content upstream")
	}
	return nil
}

// Refresh unconditionally reloads the feed and replaces the displayed
// content.
func (f *FeedController) Refresh(ctx context.Context) error {
	f.mu.Lock()
	if f.refreshing {
		f.mu.Unlock()
		return nil
	}
	f.refreshing = true
	f.loading = true
	f.mu.Unlock()

	items, err := f.fetchPage(ctx, f.pageSize)

	f.mu.Lock()
	f.refreshing = false
	f.loading = false
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.items = items
	f.hasNew = false
	changed := f.attached
	f.mu.Unlock()

	f.recordSeen(ctx, items)
	if changed {
		f.notifyContentChanged("refresh")
	}
	return nil
}

// Update merges items that arrived while the page was unfocused in
// front of the displayed content, deduplicated by URI.
func (f *FeedController) Update(ctx context.Context) error {
	fetched, err := f.fetchPage(ctx, f.pageSize)
	if err != nil {
		return err
	}

	f.mu.Lock()
	known := lo.SliceToMap(f.items, func(item models.FeedItem) (string, struct{}) {
		return item.URI, struct{}{}
	})
	fresh := lo.Filter(fetched, func(item models.FeedItem, _ int) bool {
		_, seen := known[item.URI]
		return !seen
	})
	if len(fresh) == 0 {
		f.mu.Unlock()
		return nil
	}
	f.items = append(fresh, f.items...)
	items := f.items
	changed := f.attached
	f.mu.Unlock()

	log.WithFields(log.Fields{
		"feed":  f.desc.String(),
		"fresh": len(fresh),
	}).Debug("Merged new items")

	f.recordSeen(ctx, items)
	if changed {
		f.notifyContentChanged("update")
	}
	return nil
}

// Items returns the displayed content.
func (f *FeedController) Items() []models.FeedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.FeedItem, len(f.items))
	copy(out, f.items)
	return out
}

func (f *FeedController) storeKey() string {
	if f.desc.Kind == models.FeedKindMain {
		return "timeline"
	}
	return f.desc.URI
}

func (f *FeedController) recordSeen(ctx context.Context, items []models.FeedItem) {
	if len(items) == 0 {
		return
	}
	cursor := store.Cursor{URI: items[0].URI, CID: items[0].CID}

	f.mu.Lock()
	f.lastSeen = cursor
	f.mu.Unlock()

	if f.store == nil {
		return
	}
	if err := f.store.SetLastSeen(ctx, f.storeKey(), cursor); err != nil {
		log.Warnf("Could not persist seen cursor for %s: %v", f.desc.String(), err)
	}
}

func (f *FeedController) notifyContentChanged(reason string) {
	log.WithFields(log.Fields{
		"feed":   f.desc.String(),
		"reason": reason,
	}).Debug("Content changed")
}

// fetchPage fetches up to limit items from the head of the feed,
// retrying transient failures with exponential backoff.
func (f *FeedController) fetchPage(ctx context.Context, limit int64) ([]models.FeedItem, error) {
	var posts []*bsky.FeedDefs_FeedViewPost

	fetch := func() error {
		switch f.desc.Kind {
		case models.FeedKindMain:
			resp, err := f.client.Timeline(ctx, "", limit)
			if err != nil {
				return err
			}
			posts = resp.Feed
		default:
			resp, err := f.client.Feed(ctx, f.desc.URI, "", limit)
			if err != nil {
				return err
			}
			posts = resp.Feed
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		return nil, err
	}

	items := make([]models.FeedItem, 0, len(posts))
	for _, post := range posts {
		if post == nil || post.Post == nil {
			continue
		}
		items = append(items, viewToItem(post.Post))
	}
	return items, nil
}

func viewToItem(view *bsky.FeedDefs_PostView) models.FeedItem {
	item := models.FeedItem{
		URI: view.Uri,
		CID: view.Cid,
	}
	if view.Author != nil {
		item.AuthorDID = view.Author.Did
		item.AuthorHandle = view.Author.Handle
	}
	if indexed, err := time.Parse(time.RFC3339, view.IndexedAt); err == nil {
		item.IndexedAt = indexed
	}
	if view.Record != nil {
		if record, ok := view.Record.Val.(*bsky.FeedPost); ok {
			item.Text = record.Text
		}
	}
	return item
}
