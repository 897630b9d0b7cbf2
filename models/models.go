package models

import (
	"fmt"
	"time"
)

// FeedKind distinguishes the main timeline from user-pinned custom feeds.
type FeedKind int

const (
	FeedKindMain FeedKind = iota
	FeedKindCustom
)

func (k FeedKind) String() string {
	switch k {
	case FeedKindMain:
		return "main"
	case FeedKindCustom:
		return "custom"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// FeedDescriptor is the immutable identity of one feed page. For custom
// feeds the URI is the at:// URI of the feed generator record; the main
// timeline has no URI.
type FeedDescriptor struct {
	Kind FeedKind
	URI  string
}

func MainFeed() FeedDescriptor {
	return FeedDescriptor{Kind: FeedKindMain}
}

func CustomFeed(uri string) FeedDescriptor {
	return FeedDescriptor{Kind: FeedKindCustom, URI: uri}
}

// Equal compares descriptors structurally.
func (d FeedDescriptor) Equal(other FeedDescriptor) bool {
	return d.Kind == other.Kind && d.URI == other.URI
}

func (d FeedDescriptor) String() string {
	if d.Kind == FeedKindMain {
		return "main"
	}
	return d.URI
}

// FocusState is the derived focus triple for one page. Gating decisions
// read this through the session's accessor, never from a cached copy.
type FocusState struct {
	AppForeground bool
	ScreenFocused bool
	PageFocused   bool
}

// All reports whether every focus signal holds simultaneously.
func (f FocusState) All() bool {
	return f.AppForeground && f.ScreenFocused && f.PageFocused
}

// FeedItem is one cached content item held by a feed controller.
type FeedItem struct {
	URI          string    `json:"uri"`
	CID          string    `json:"cid"`
	AuthorDID    string    `json:"authorDid"`
	AuthorHandle string    `json:"authorHandle,omitempty"`
	Text         string    `json:"text,omitempty"`
	IndexedAt    time.Time `json:"indexedAt"`
}
