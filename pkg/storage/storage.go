package storage

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/electrohold/pkg/types"
)

// CurrentSnapshotVersion is written alongside every persisted snapshot.
const CurrentSnapshotVersion = 1

// Store persists the scalar fields of a resolver's price cache so a restart can
// keep serving the last known-good prices. It never stores history.
type Store interface {
	// GetSnapshot returns the stored entry. ok is false if nothing was stored.
	GetSnapshot(ctx context.Context, resolverID string) (entry types.CacheEntry, ok bool, err error)
	// SaveSnapshot replaces the stored entry.
	SaveSnapshot(ctx context.Context, resolverID string, entry types.CacheEntry) error

	// Lifecycle
	Close() error
}

// Configured sets up the Store based on flags.
func Configured() Store {
	provider := lflag.String("storage-provider", "none", "Storage provider to use (available: none, firestore, postgres)")

	var p struct{ Store }

	fs := configuredFirestore()
	pg := configuredPostgres()

	lflag.Do(func() {
		switch *provider {
		case "none", "":
			p.Store = Nop{}
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Store = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "postgres":
			if err := pg.Validate(); err != nil {
				panic(fmt.Sprintf("postgres validation failed: %v", err))
			}
			p.Store = pg
			if err := pg.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("postgres init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// Nop is a Store that keeps nothing.
type Nop struct{}

// GetSnapshot implements Store.
func (Nop) GetSnapshot(context.Context, string) (types.CacheEntry, bool, error) {
	return types.CacheEntry{}, false, nil
}

// SaveSnapshot implements Store.
func (Nop) SaveSnapshot(context.Context, string, types.CacheEntry) error {
	return nil
}

// Close implements Store.
func (Nop) Close() error {
	return nil
}
