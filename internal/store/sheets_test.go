package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

// fakeSheets serves the three spreadsheet endpoints the store uses
// (values get, update and append) over an in-memory grid per tab.
// Row 1 is the header, so grid index 0 is sheet row 2.
type fakeSheets struct {
	mu   sync.Mutex
	tabs map[string][][]string
}

func (f *fakeSheets) rows(tab string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.tabs[tab]))
	for i, row := range f.tabs[tab] {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func splitRange(ref string) (tab, cell string) {
	tab, cell, _ = strings.Cut(ref, "!")
	cell, _, _ = strings.Cut(cell, ":")
	return tab, cell
}

// parseCell turns "B5" into a zero-based column and the 1-based sheet row.
func parseCell(cell string) (col, row int) {
	i := 0
	for i < len(cell) && cell[i] >= 'A' && cell[i] <= 'Z' {
		col = col*26 + int(cell[i]-'A'+1)
		i++
	}
	row, _ = strconv.Atoi(cell[i:])
	return col - 1, row
}

func (f *fakeSheets) handler(w http.ResponseWriter, r *http.Request) {
	i := strings.Index(r.URL.Path, "/values/")
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	ref := strings.TrimSuffix(r.URL.Path[i+len("/values/"):], ":append")
	tab, cell := splitRange(ref)
	col, row := parseCell(cell)

	var body struct {
		Values [][]interface{} `json:"values"`
	}
	if r.Method != http.MethodGet {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet:
		values := make([][]interface{}, len(f.tabs[tab]))
		for i, gridRow := range f.tabs[tab] {
			cells := make([]interface{}, len(gridRow))
			for j, c := range gridRow {
				cells[j] = c
			}
			values[i] = cells
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"values": values})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		for _, vr := range body.Values {
			gridRow := make([]string, len(vr))
			for j, c := range vr {
				gridRow[j] = fmt.Sprint(c)
			}
			f.tabs[tab] = append(f.tabs[tab], gridRow)
		}
		fmt.Fprint(w, "{}")

	case r.Method == http.MethodPut:
		for off, vr := range body.Values {
			idx := row - 2 + off
			for idx >= len(f.tabs[tab]) {
				f.tabs[tab] = append(f.tabs[tab], nil)
			}
			for j, c := range vr {
				for col+j >= len(f.tabs[tab][idx]) {
					f.tabs[tab][idx] = append(f.tabs[tab][idx], "")
				}
				f.tabs[tab][idx][col+j] = fmt.Sprint(c)
			}
		}
		fmt.Fprint(w, "{}")

	default:
		http.NotFound(w, r)
	}
}

func newSheetsTestStore(t *testing.T) (*SheetsStore, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{tabs: map[string][][]string{}}
	ts := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(ts.Close)

	srv, err := sheets.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(ts.URL+"/"))
	require.NoError(t, err)
	return &SheetsStore{srv: srv, spreadsheetID: "sheet-1"}, fake
}

func TestSheetsStore_EnsureAccount(t *testing.T) {
	s, fake := newSheetsTestStore(t)
	ctx := context.Background()

	acc, err := s.EnsureAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.Balance)

	_, err = s.Credit(ctx, 42, 500)
	require.NoError(t, err)

	// a second ensure must not reset the stored balance
	acc, err = s.EnsureAccount(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(500), acc.Balance)
	assert.Len(t, fake.rows("wallet"), 1)

	_, err = s.Balance(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSheetsStore_DebitIfSufficient(t *testing.T) {
	s, fake := newSheetsTestStore(t)
	ctx := context.Background()

	_, err := s.EnsureAccount(ctx, 42)
	require.NoError(t, err)
	_, err = s.Credit(ctx, 42, 500)
	require.NoError(t, err)

	t.Run("sufficient", func(t *testing.T) {
		balance, err := s.DebitIfSufficient(ctx, 42, 300)
		require.NoError(t, err)
		assert.Equal(t, int64(200), balance)
		assert.Equal(t, "200", fake.rows("wallet")[0][1])
	})

	t.Run("insufficient", func(t *testing.T) {
		_, err := s.DebitIfSufficient(ctx, 42, 300)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, "200", fake.rows("wallet")[0][1])
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := s.DebitIfSufficient(ctx, 99, 1)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})
}

func TestSheetsStore_UpsertItem(t *testing.T) {
	s, fake := newSheetsTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertItem(ctx, &models.CatalogItem{Name: "เกมเก่า", DriveID: "drive-1", PriceCents: 1000}))
	require.NoError(t, s.UpsertItem(ctx, &models.CatalogItem{Name: "เกมใหม่", DriveID: "drive-2", PriceCents: 2000}))

	// same name overwrites in place rather than appending
	require.NoError(t, s.UpsertItem(ctx, &models.CatalogItem{Name: "เกมเก่า", DriveID: "drive-3", PriceCents: 1500}))
	assert.Len(t, fake.rows("catalog"), 2)

	item, err := s.FindItem(ctx, "เกมเก่า")
	require.NoError(t, err)
	assert.Equal(t, "drive-3", item.DriveID)
	assert.Equal(t, int64(1500), item.PriceCents)
}

func TestSheetsStore_RemoveItem(t *testing.T) {
	s, fake := newSheetsTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertItem(ctx, &models.CatalogItem{Name: "เกมเก่า", DriveID: "drive-1", PriceCents: 1000}))
	require.NoError(t, s.UpsertItem(ctx, &models.CatalogItem{Name: "เกมใหม่", DriveID: "drive-2", PriceCents: 2000}))

	removed, err := s.RemoveItem(ctx, "เกมเก่า")
	require.NoError(t, err)
	assert.True(t, removed)

	// the row is blanked, not deleted, so later row indexes stay stable
	rows := fake.rows("catalog")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"", "", ""}, rows[0])

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "เกมใหม่", items[0].Name)

	_, err = s.FindItem(ctx, "เกมเก่า")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err = s.RemoveItem(ctx, "ไม่มีอยู่")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSheetsStore_Purchases(t *testing.T) {
	s, fake := newSheetsTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, rec := range []*models.PurchaseRecord{
		{Reference: "ref-1", DiscordID: 42, ItemName: "เกมหนึ่ง", DriveID: "d1", PriceCents: 100},
		{Reference: "ref-2", DiscordID: 7, ItemName: "เกมสอง", DriveID: "d2", PriceCents: 200},
		{Reference: "ref-3", DiscordID: 42, ItemName: "เกมสาม", DriveID: "d3", PriceCents: 300},
	} {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.AppendPurchase(ctx, rec))
	}

	refundedAt := base.Add(time.Hour)
	require.NoError(t, s.MarkRefunded(ctx, "ref-1", refundedAt))
	assert.ErrorIs(t, s.MarkRefunded(ctx, "ref-404", refundedAt), ErrNotFound)
	assert.Equal(t, refundedAt.Format(time.RFC3339), fake.rows("orders")[0][6])

	records, err := s.ListPurchases(ctx, 42, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ref-3", records[0].Reference)
	assert.Equal(t, "ref-1", records[1].Reference)
	assert.Nil(t, records[0].RefundedAt)
	require.NotNil(t, records[1].RefundedAt)
	assert.True(t, records[1].RefundedAt.Equal(refundedAt))

	records, err = s.ListPurchases(ctx, 42, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ref-3", records[0].Reference)
}
