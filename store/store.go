// Package store persists the last-seen cursor per feed so a restarted
// pager can tell new content from content it already showed.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Cursor is the newest post a feed page has been seen at.
type Cursor struct {
	URI string
	CID string
}

// Store wraps the seen-cursor database with a shared connection pool.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := connection(path)
	if err != nil {
		return nil, fmt.Errorf("could not open seen store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LastSeen returns the stored cursor for a feed, or a zero cursor when
// the feed has never been recorded.
func (s *Store) LastSeen(ctx context.Context, feedURI string) (Cursor, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("last_seen_uri", "last_seen_cid").From("feed_state")
	sb.Where(sb.Equal("feed_uri", feedURI))

	query, args := sb.Build()

	var cursor Cursor
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&cursor.URI, &cursor.CID)
	if err == sql.ErrNoRows {
		return Cursor{}, nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("query error: %w", err)
	}
	return cursor, nil
}

// SetLastSeen upserts the cursor for a feed.
func (s *Store) SetLastSeen(ctx context.Context, feedURI string, cursor Cursor) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"feed": feedURI,
		"uri":  cursor.URI,
	}).Debug("Recording last seen post")

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_state (feed_uri, last_seen_uri, last_seen_cid, last_checked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (feed_uri) DO UPDATE SET
			last_seen_uri = excluded.last_seen_uri,
			last_seen_cid = excluded.last_seen_cid,
			last_checked_at = excluded.last_checked_at`,
		feedURI,
		cursor.URI,
		cursor.CID,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert error: %w", err)
	}
	return nil
}

// Forget removes the cursor for a feed that is no longer pinned.
func (s *Store) Forget(ctx context.Context, feedURI string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM feed_state WHERE feed_uri = ?", feedURI)
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	return nil
}
