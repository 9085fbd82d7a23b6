package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albarami/Whale-hunter/internal/domain"
	"github.com/albarami/Whale-hunter/internal/storage"
)

func TestWalletStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	ctx := context.Background()

	firstSeen := time.Now().UTC().Truncate(time.Millisecond)
	w := &domain.Wallet{
		Address:    "WalletAddr1",
		Tier:       domain.TierB,
		FirstSeen:  firstSeen,
		Confidence: 0.5,
		CEXFunded:  true,
		CEXSource:  "binance_hot_1",
	}

	err := store.Upsert(ctx, w)
	require.NoError(t, err)

	got, err := store.Get(ctx, "WalletAddr1")
	require.NoError(t, err)

	assert.Equal(t, domain.TierB, got.Tier)
	assert.Equal(t, 0.5, got.Confidence)
	assert.True(t, got.CEXFunded)
	assert.Equal(t, "binance_hot_1", got.CEXSource)
	assert.WithinDuration(t, firstSeen, got.FirstSeen, time.Millisecond)
}

func TestWalletStore_UpsertConflictKeepsBetterTier(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.Wallet{
		Address: "W", Tier: domain.TierA, FirstSeen: time.Now(), Confidence: 0.7,
	}))

	// Worse tier on conflict: stored row unchanged.
	require.NoError(t, store.Upsert(ctx, &domain.Wallet{
		Address: "W", Tier: domain.TierC, FirstSeen: time.Now(), Confidence: 0.2,
	}))
	got, err := store.Get(ctx, "W")
	require.NoError(t, err)
	assert.Equal(t, domain.TierA, got.Tier)
	assert.Equal(t, 0.7, got.Confidence)

	// Better tier upgrades; CEX flag is sticky.
	require.NoError(t, store.Upsert(ctx, &domain.Wallet{
		Address: "W", Tier: domain.TierS, FirstSeen: time.Now(),
		CEXFunded: true, CEXSource: "coinbase_1",
	}))
	got, err = store.Get(ctx, "W")
	require.NoError(t, err)
	assert.Equal(t, domain.TierS, got.Tier)
	assert.True(t, got.CEXFunded)

	require.NoError(t, store.Upsert(ctx, &domain.Wallet{
		Address: "W", Tier: domain.TierC, FirstSeen: time.Now(),
	}))
	got, err = store.Get(ctx, "W")
	require.NoError(t, err)
	assert.True(t, got.CEXFunded, "CEX flag must not be cleared by later upserts")
}

func TestWalletStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWalletStore_SaveRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.Wallet{
		Address: "W", Tier: domain.TierC, FirstSeen: time.Now(), Confidence: 0.5,
	}))

	w, err := store.Get(ctx, "W")
	require.NoError(t, err)

	lastWin := time.Now().UTC().Truncate(time.Millisecond)
	w.Tier = domain.TierA
	w.WinCount = 3
	w.TotalPnL = 1250.5
	w.LastWin = &lastWin
	w.Confidence = 0.66
	w.TrustScore = 0.41
	require.NoError(t, store.Save(ctx, w))

	got, err := store.Get(ctx, "W")
	require.NoError(t, err)
	assert.Equal(t, domain.TierA, got.Tier)
	assert.Equal(t, 3, got.WinCount)
	assert.Equal(t, 1250.5, got.TotalPnL)
	assert.Equal(t, 0.66, got.Confidence)
	assert.Equal(t, 0.41, got.TrustScore)
	require.NotNil(t, got.LastWin)
	assert.WithinDuration(t, lastWin, *got.LastWin, time.Millisecond)
}

func TestWalletStore_ApplyDecayIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	lastWin := now.Add(-30 * 24 * time.Hour)
	require.NoError(t, store.Upsert(ctx, &domain.Wallet{
		Address: "W", Tier: domain.TierA, FirstSeen: now.Add(-90 * 24 * time.Hour),
		Confidence: 0.8,
	}))
	w, err := store.Get(ctx, "W")
	require.NoError(t, err)
	w.LastWin = &lastWin
	require.NoError(t, store.Save(ctx, w))

	touched, err := store.ApplyDecay(ctx, now, 30*24*time.Hour, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	got, err := store.Get(ctx, "W")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got.Confidence, 1e-6, "one half-life halves confidence")

	// A second pass at the same clock touches nothing.
	touched, err = store.ApplyDecay(ctx, now, 30*24*time.Hour, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 0, touched)

	again, err := store.Get(ctx, "W")
	require.NoError(t, err)
	assert.Equal(t, got.Confidence, again.Confidence)
}

func TestWalletStore_ListByTier(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewWalletStore(pool)
	ctx := context.Background()

	now := time.Now()
	for _, w := range []*domain.Wallet{
		{Address: "a", Tier: domain.TierS, FirstSeen: now},
		{Address: "b", Tier: domain.TierB, FirstSeen: now},
		{Address: "c", Tier: domain.TierC, FirstSeen: now},
	} {
		require.NoError(t, store.Upsert(ctx, w))
	}

	got, err := store.ListByTier(ctx, domain.TierB)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Address)
	assert.Equal(t, "b", got[1].Address)
}
