// Package store persists relay traffic metadata.
package store

import (
	"context"
	"time"
)

// JournalEntry is the metadata of one relayed envelope. Shape content is
// never stored.
type JournalEntry struct {
	ID      int64     `json:"id"`
	Session string    `json:"session"`
	Type    string    `json:"type"`
	Chart   string    `json:"chart,omitempty"`
	Sender  string    `json:"sender"`
	Size    int       `json:"size"`
	At      time.Time `json:"at"`
}

// JournalFilter narrows a Recent query.
type JournalFilter struct {
	Session string
	Type    string
	Sender  string
	Since   time.Time
	Limit   int
}

// Journal records relay traffic.
type Journal interface {
	// Record appends one entry. A zero At is stamped with the current time.
	Record(ctx context.Context, entry JournalEntry) error
	// Recent returns the newest entries first.
	Recent(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)
	// Counts returns the number of entries per message type for a session.
	Counts(ctx context.Context, session string) (map[string]int, error)
	// Sessions lists every session with at least one entry.
	Sessions(ctx context.Context) ([]string, error)
	// Purge deletes entries older than before and reports how many went.
	Purge(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
