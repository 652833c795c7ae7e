package core

import (
	"context"
	"log"
	"time"

	"github.com/SarajZimba/chatbot-llm/internal/store"
)

// ExpiryReaper periodically deletes documents and OCR records older than the
// retention window. Outlet-scoped documents are permanent and never swept.
type ExpiryReaper struct {
	dbStore   *store.SQLiteStore
	interval  time.Duration
	retention time.Duration
}

func NewExpiryReaper(db *store.SQLiteStore, interval, retention time.Duration) *ExpiryReaper {
	return &ExpiryReaper{
		dbStore:   db,
		interval:  interval,
		retention: retention,
	}
}

// Run sweeps on a ticker until the context is cancelled. Meant to be
// started on its own goroutine from main.
func (r *ExpiryReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *ExpiryReaper) sweep() {
	docs, err := r.dbStore.DeleteExpiredDocuments(r.retention)
	if err != nil {
		log.Printf("Expiry sweep failed for documents: %v", err)
	}
	images, err := r.dbStore.DeleteExpiredImages(r.retention)
	if err != nil {
		log.Printf("Expiry sweep failed for images: %v", err)
	}
	if docs > 0 || images > 0 {
		log.Printf("Expiry sweep removed %d documents and %d images", docs, images)
	}
}
