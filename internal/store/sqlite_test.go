package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000",
		strings.ReplaceAll(t.Name(), "/", "_"))
	s, err := OpenSqlite(dsn)
	require.NoError(t, err)

	// One connection: keeps the shared in-memory database alive for the
	// whole test and serializes writers.
	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return s
}

func TestSqliteStore_EnsureAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	account, err := s.EnsureAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)

	// Existing account is returned untouched.
	_, err = s.Credit(ctx, 42, 500)
	require.NoError(t, err)
	account, err = s.EnsureAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(500), account.Balance)
}

func TestSqliteStore_DebitIfSufficient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.EnsureAccount(ctx, 42)
	require.NoError(t, err)
	_, err = s.Credit(ctx, 42, 1000)
	require.NoError(t, err)

	balance, err := s.DebitIfSufficient(ctx, 42, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)

	_, err = s.DebitIfSufficient(ctx, 42, 701)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// The failed debit changed nothing.
	balance, err = s.Balance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(700), balance)
}

func TestSqliteStore_ConcurrentDebits(t *testing.T) {
	// Ten racing debits of 100 against a balance of 500: exactly five
	// may win and the balance must end at 0, never below.
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.EnsureAccount(ctx, 42)
	require.NoError(t, err)
	_, err = s.Credit(ctx, 42, 500)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.DebitIfSufficient(ctx, 42, 100); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, wins)
	balance, err := s.Balance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestSqliteStore_CatalogUpsert(t *testing.T) {
	// Upsert overwrites an existing name in place; removal of a
	// missing name reports false.
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertItem(ctx, &models.CatalogItem{
		Name: "clip-a", DriveID: "d1", PriceCents: 300,
	}))
	require.NoError(t, s.UpsertItem(ctx, &models.CatalogItem{
		Name: "clip-a", DriveID: "d2", PriceCents: 500,
	}))

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "d2", items[0].DriveID)
	assert.Equal(t, int64(500), items[0].PriceCents)

	removed, err := s.RemoveItem(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.RemoveItem(ctx, "clip-a")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = s.FindItem(ctx, "clip-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSqliteStore_PurchaseSnapshots(t *testing.T) {
	// Snapshot law: editing or removing the catalog item leaves old
	// purchase rows unchanged.
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertItem(ctx, &models.CatalogItem{
		Name: "clip-a", DriveID: "d1", PriceCents: 300,
	}))

	rec := &models.PurchaseRecord{
		Reference:  "ref-1",
		DiscordID:  42,
		ItemName:   "clip-a",
		DriveID:    "d1",
		PriceCents: 300,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.AppendPurchase(ctx, rec))
	assert.NotZero(t, rec.ID)

	require.NoError(t, s.UpsertItem(ctx, &models.CatalogItem{
		Name: "clip-a", DriveID: "d9", PriceCents: 999,
	}))
	_, err := s.RemoveItem(ctx, "clip-a")
	require.NoError(t, err)

	records, err := s.ListPurchases(ctx, 42, 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "clip-a", records[0].ItemName)
	assert.Equal(t, int64(300), records[0].PriceCents)
	assert.Equal(t, "d1", records[0].DriveID)
	assert.Nil(t, records[0].RefundedAt)
}

func TestSqliteStore_MarkRefunded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &models.PurchaseRecord{
		Reference: "ref-1", DiscordID: 42, ItemName: "clip-a",
		DriveID: "d1", PriceCents: 300, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.AppendPurchase(ctx, rec))

	at := time.Now().UTC()
	require.NoError(t, s.MarkRefunded(ctx, "ref-1", at))
	assert.ErrorIs(t, s.MarkRefunded(ctx, "ghost", at), ErrNotFound)

	records, err := s.ListPurchases(ctx, 42, 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].RefundedAt)
}

func TestSqliteStore_ListPurchasesOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendPurchase(ctx, &models.PurchaseRecord{
			Reference:  string(rune('a' + i)),
			DiscordID:  42,
			ItemName:   "clip",
			DriveID:    "d1",
			PriceCents: int64(i),
			CreatedAt:  time.Now().UTC(),
		}))
	}

	records, err := s.ListPurchases(ctx, 42, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Most recent first.
	assert.Equal(t, int64(2), records[0].PriceCents)
	assert.Equal(t, int64(1), records[1].PriceCents)

	// Unknown account: empty, no error.
	records, err = s.ListPurchases(ctx, 99, 50)
	require.NoError(t, err)
	assert.Empty(t, records)
}
