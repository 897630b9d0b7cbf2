package models_test

import (
	"skypager/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFocusStateAll(t *testing.T) {
	tests := []struct {
		name     string
		focus    models.FocusState
		expected bool
	}{
		{
			name:     "nothing focused",
			focus:    models.FocusState{},
			expected: false,
		},
		{
			name:     "app foregrounded only",
			focus:    models.FocusState{AppForeground: true},
			expected: false,
		},
		{
			name:     "screen and page focused but backgrounded",
			focus:    models.FocusState{ScreenFocused: true, PageFocused: true},
			expected: false,
		},
		{
			name:     "foregrounded and screen focused on another page",
			focus:    models.FocusState{AppForeground: true, ScreenFocused: true},
			expected: false,
		},
		{
			name:     "all signals hold",
			focus:    models.FocusState{AppForeground: true, ScreenFocused: true, PageFocused: true},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.focus.All())
		})
	}
}

func TestFeedDescriptorEqual(t *testing.T) {
	tests := []struct {
		name     string
		a        models.FeedDescriptor
		b        models.FeedDescriptor
		expected bool
	}{
		{
			name:     "main equals main",
			a:        models.MainFeed(),
			b:        models.MainFeed(),
			expected: true,
		},
		{
			name:     "same custom URI",
			a:        models.CustomFeed("at://did:plc:abc/app.bsky.feed.generator/cats"),
			b:        models.CustomFeed("at://did:plc:abc/app.bsky.feed.generator/cats"),
			expected: true,
		},
		{
			name:     "different custom URI",
			a:        models.CustomFeed("at://did:plc:abc/app.bsky.feed.generator/cats"),
			b:        models.CustomFeed("at://did:plc:abc/app.bsky.feed.generator/dogs"),
			expected: false,
		},
		{
			name:     "main versus custom",
			a:        models.MainFeed(),
			b:        models.CustomFeed("at://did:plc:abc/app.bsky.feed.generator/cats"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Equal(tt.b))
		})
	}
}

func TestFeedDescriptorString(t *testing.T) {
	assert.Equal(t, "main", models.MainFeed().String())
	assert.Equal(t,
		"at://did:plc:abc/app.bsky.feed.generator/cats",
		models.CustomFeed("at://did:plc:abc/app.bsky.feed.generator/cats").String(),
	)
}
