package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/electrohold/pkg/types"
)

func testEntry() types.CacheEntry {
	at := time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC)
	return types.CacheEntry{
		LastGoodDayPrice:     decimal.NewNullDecimal(decimal.RequireFromString("0.14974")),
		LastGoodNightPrice:   decimal.NewNullDecimal(decimal.RequireFromString("0.08857")),
		LastGoodCurrentPrice: decimal.NewNullDecimal(decimal.RequireFromString("0.14974")),
		TariffTypeLabel:      "Day (Summer)",
		LastUpdatedAt:        at,
		DayUpdatedAt:         at,
		NightUpdatedAt:       at,
		DayInitialized:       true,
		NightInitialized:     true,
	}
}

func assertEntry(t *testing.T, want, got types.CacheEntry) {
	t.Helper()
	assert.Equal(t, want.LastGoodDayPrice.Decimal.String(), got.LastGoodDayPrice.Decimal.String())
	assert.Equal(t, want.LastGoodNightPrice.Decimal.String(), got.LastGoodNightPrice.Decimal.String())
	assert.Equal(t, want.LastGoodCurrentPrice.Decimal.String(), got.LastGoodCurrentPrice.Decimal.String())
	assert.Equal(t, want.TariffTypeLabel, got.TariffTypeLabel)
	assert.True(t, want.LastUpdatedAt.Equal(got.LastUpdatedAt))
	assert.Equal(t, want.DayInitialized, got.DayInitialized)
	assert.Equal(t, want.NightInitialized, got.NightInitialized)
}

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// Use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("Missing", func(t *testing.T) {
		_, ok, err := f.GetSnapshot(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SaveAndGet", func(t *testing.T) {
		want := testEntry()
		require.NoError(t, f.SaveSnapshot(ctx, "default", want))

		got, ok, err := f.GetSnapshot(ctx, "default")
		require.NoError(t, err)
		require.True(t, ok)
		assertEntry(t, want, got)
	})

	t.Run("EmptyResolverID", func(t *testing.T) {
		_, _, err := f.GetSnapshot(ctx, "")
		assert.ErrorContains(t, err, "resolverID cannot be empty")
	})
}
