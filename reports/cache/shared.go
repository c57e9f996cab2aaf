package cache

import (
	"context"
	"errors"
	"time"

	"encore.dev/rlog"
	ecache "encore.dev/storage/cache"
)

// Shared is the cross-instance L2 for completed results. Like the L1 it is
// best-effort only: a miss or an unreachable cluster degrades to the durable
// store, never to an error.
type Shared interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, entry *Entry)
}

// ResultCluster is the cache cluster for generated report content.
var ResultCluster = ecache.NewCluster("report-results", ecache.ClusterConfig{
	EvictionPolicy: ecache.AllKeysLRU,
})

var resultKeyspace = ecache.NewStructKeyspace[string, Entry](
	ResultCluster,
	ecache.KeyspaceConfig{
		KeyPattern:    "results/:key",
		DefaultExpiry: ecache.ExpireIn(24 * time.Hour),
	},
)

type sharedKeyspace struct{}

// NewShared returns the keyspace-backed Shared implementation.
func NewShared() Shared {
	return sharedKeyspace{}
}

func (sharedKeyspace) Get(ctx context.Context, key string) (*Entry, bool) {
	entry, err := resultKeyspace.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ecache.Miss) {
			rlog.Error("shared result cache lookup failed", "error", err, "key", key)
		}
		return nil, false
	}
	// The keyspace expiry is a coarse upper bound; the entry carries the
	// artifact-specific deadline.
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return &entry, true
}

func (sharedKeyspace) Set(ctx context.Context, entry *Entry) {
	if err := resultKeyspace.Set(ctx, entry.Key, *entry); err != nil {
		rlog.Error("failed to populate shared result cache", "error", err, "key", entry.Key)
	}
}
