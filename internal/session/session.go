// Package session holds the ephemeral slot values collected for a
// (outlet, user, command) triple while a guided command is being resolved.
package session

import (
	"context"
	"fmt"
	"time"
)

// TTL is how long a slot session survives without being touched.
const TTL = time.Hour

// Store is the ephemeral keyed slot mapping. Merge must be atomic per key:
// a concurrent merge on the same session must not lose updates.
type Store interface {
	// Get returns the stored slot values, an empty map when nothing is
	// stored yet.
	Get(ctx context.Context, outlet, userID string, commandID int64) (map[string]string, error)

	// Merge layers updates over the stored values (non-empty incoming
	// values win, absent keys are untouched), writes the merged mapping
	// back with a refreshed TTL and returns it.
	Merge(ctx context.Context, outlet, userID string, commandID int64, updates map[string]string) (map[string]string, error)
}

func sessionKey(outlet, userID string, commandID int64) string {
	return fmt.Sprintf("%s_%s_%d", outlet, userID, commandID)
}

func mergeSlots(current, updates map[string]string) map[string]string {
	merged := make(map[string]string, len(current)+len(updates))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range updates {
		if v != "" {
			merged[k] = v
		}
	}
	return merged
}
