package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

var testItems = []models.CatalogItem{
	{Name: "clip-a", DriveID: "d1", PriceCents: 300},
	{Name: "clip-b", DriveID: "d2", PriceCents: 500},
}

func TestCatalog_GetMissAndHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewCatalog(rdb, time.Minute)
	ctx := context.Background()

	mock.ExpectGet(catalogKey).RedisNil()
	_, ok := c.Get(ctx)
	assert.False(t, ok)

	raw, err := json.Marshal(testItems)
	require.NoError(t, err)
	mock.ExpectGet(catalogKey).SetVal(string(raw))

	items, ok := c.Get(ctx)
	assert.True(t, ok)
	assert.Equal(t, testItems, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_SetAndInvalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewCatalog(rdb, time.Minute)
	ctx := context.Background()

	raw, err := json.Marshal(testItems)
	require.NoError(t, err)
	mock.ExpectSet(catalogKey, raw, time.Minute).SetVal("OK")
	c.Set(ctx, testItems)

	mock.ExpectDel(catalogKey).SetVal(1)
	c.Invalidate(ctx)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog_NilSafe(t *testing.T) {
	ctx := context.Background()

	var c *Catalog
	_, ok := c.Get(ctx)
	assert.False(t, ok)
	c.Set(ctx, testItems)
	c.Invalidate(ctx)

	c = NewCatalog(nil, time.Minute)
	_, ok = c.Get(ctx)
	assert.False(t, ok)
	c.Set(ctx, testItems)
	c.Invalidate(ctx)
}

func TestCatalog_CorruptPayloadIsAMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewCatalog(rdb, time.Minute)

	mock.ExpectGet(catalogKey).SetVal("{not json")
	_, ok := c.Get(context.Background())
	assert.False(t, ok)
}
