package bluesky

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/labstack/gommon/log"
)

const DefaultPDSHost = "https://bsky.social"

type Credentials struct {
	Identifier string
	Password   string
}

type Client struct {
	xrpc *xrpc.Client
}

func ClientFromCredentials(ctx context.Context, host string, creds *Credentials) (*Client, error) {
	auth, err := atproto.ServerCreateSession(ctx, &xrpc.Client{Host: host}, &atproto.ServerCreateSession_Input{
		Identifier: creds.Identifier,
		Password:   creds.Password,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	xrpcClient := &xrpc.Client{
		Host: host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  auth.AccessJwt,
			RefreshJwt: auth.RefreshJwt,
			Handle:     auth.Handle,
			Did:        auth.Did,
		},
		Client: http.DefaultClient,
	}

	return &Client{xrpc: xrpcClient}, nil
}

// DID returns the authenticated account's DID.
func (c *Client) DID() string {
	if c.xrpc.Auth == nil {
		return ""
	}
	return c.xrpc.Auth.Did
}

// Timeline fetches a page of the account's following timeline.
func (c *Client) Timeline(ctx context.Context, cursor string, limit int64) (*bsky.FeedGetTimeline_Output, error) {
	resp, err := bsky.FeedGetTimeline(ctx, c.xrpc, "", cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}
	return resp, nil
}

// Feed fetches a page of a custom feed by its generator URI.
func (c *Client) Feed(ctx context.Context, feedURI string, cursor string, limit int64) (*bsky.FeedGetFeed_Output, error) {
	resp, err := bsky.FeedGetFeed(ctx, c.xrpc, cursor, feedURI, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed %s: %w", feedURI, err)
	}
	return resp, nil
}

// PinnedFeeds reads the account's saved-feeds preference and returns
// the pinned feed URIs in their saved order.
func (c *Client) PinnedFeeds(ctx context.Context) ([]string, error) {
	prefs, err := bsky.ActorGetPreferences(ctx, c.xrpc)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	for _, pref := range prefs.Preferences {
		if pref.ActorDefs_SavedFeedsPref != nil {
			return pref.ActorDefs_SavedFeedsPref.Pinned, nil
		}
	}

	log.Warnf("account %s has no saved feeds preference", c.DID())
	return nil, nil
}
