package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/raterudder/electrohold/pkg/log"
	"github.com/raterudder/electrohold/pkg/types"
)

// FirestoreProvider implements Store using Google Cloud Firestore. Each resolver
// owns one document in the "resolvers" collection.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID may be empty, the client detects it from the environment.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getDoc(resolverID string) (*firestore.DocumentRef, error) {
	if resolverID == "" {
		return nil, fmt.Errorf("resolverID cannot be empty")
	}
	return f.client.Collection("resolvers").Doc(resolverID), nil
}

// GetSnapshot implements Store.
func (f *FirestoreProvider) GetSnapshot(ctx context.Context, resolverID string) (types.CacheEntry, bool, error) {
	ref, err := f.getDoc(resolverID)
	if err != nil {
		return types.CacheEntry{}, false, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.CacheEntry{}, false, nil
		}
		return types.CacheEntry{}, false, fmt.Errorf("failed to fetch snapshot doc: %w", err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "snapshot doc missing json", slog.String("resolverID", resolverID))
		return types.CacheEntry{}, false, fmt.Errorf("snapshot document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return types.CacheEntry{}, false, fmt.Errorf("snapshot 'json' field is not a string")
	}

	var entry types.CacheEntry
	if err := json.Unmarshal([]byte(jsonStr), &entry); err != nil {
		return types.CacheEntry{}, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return entry, true, nil
}

// SaveSnapshot implements Store.
func (f *FirestoreProvider) SaveSnapshot(ctx context.Context, resolverID string, entry types.CacheEntry) error {
	ref, err := f.getDoc(resolverID)
	if err != nil {
		return err
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = ref.Set(ctx, map[string]any{
		"json":      string(b),
		"version":   CurrentSnapshotVersion,
		"updatedAt": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
