package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

const (
	walletRange  = "wallet!A2:B"
	catalogRange = "catalog!A2:C"
	ordersRange  = "orders!A2:G"
)

// SheetsStore keeps catalog/wallet state in a Google Sheet with three
// tabs: wallet (discord id, balance), catalog (name, drive id, price)
// and orders (append-only purchase rows).
//
// The Sheets API has no conditional write, so every read-modify-write
// runs under one mutex. The ledger additionally serializes per account,
// but the store must not corrupt rows even if called directly.
type SheetsStore struct {
	srv           *sheets.Service
	spreadsheetID string

	mu sync.Mutex
}

// OpenSheets builds a Sheets-backed store from a service account
// credentials file.
func OpenSheets(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsStore, error) {
	srv, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &SheetsStore{srv: srv, spreadsheetID: spreadsheetID}, nil
}

func cellString(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func cellInt(row []interface{}, i int) (int64, error) {
	s := cellString(row, i)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func (s *SheetsStore) readRange(ctx context.Context, a1 string) ([][]interface{}, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *SheetsStore) writeRow(ctx context.Context, a1 string, row []interface{}) error {
	_, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, a1, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *SheetsStore) appendRow(ctx context.Context, a1 string, row []interface{}) error {
	_, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, a1, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

// walletRow locates the sheet row (1-based, including header) holding
// the account, or -1.
func (s *SheetsStore) walletRow(ctx context.Context, discordID int64) (int, int64, error) {
	rows, err := s.readRange(ctx, walletRange)
	if err != nil {
		return -1, 0, err
	}
	want := strconv.FormatInt(discordID, 10)
	for i, row := range rows {
		if cellString(row, 0) != want {
			continue
		}
		balance, err := cellInt(row, 1)
		if err != nil {
			return -1, 0, fmt.Errorf("wallet row %d: %w", i+2, err)
		}
		return i + 2, balance, nil
	}
	return -1, 0, nil
}

func (s *SheetsStore) EnsureAccount(ctx context.Context, discordID int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, balance, err := s.walletRow(ctx, discordID)
	if err != nil {
		return nil, err
	}
	if row < 0 {
		if err := s.appendRow(ctx, walletRange, []interface{}{
			strconv.FormatInt(discordID, 10), "0",
		}); err != nil {
			return nil, err
		}
		balance = 0
	}
	return &models.Account{DiscordID: discordID, Balance: balance}, nil
}

func (s *SheetsStore) Balance(ctx context.Context, discordID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, balance, err := s.walletRow(ctx, discordID)
	if err != nil {
		return 0, err
	}
	if row < 0 {
		return 0, ErrNotFound
	}
	return balance, nil
}

func (s *SheetsStore) setBalance(ctx context.Context, row int, balance int64) error {
	return s.writeRow(ctx, fmt.Sprintf("wallet!B%d", row),
		[]interface{}{strconv.FormatInt(balance, 10)})
}

func (s *SheetsStore) Credit(ctx context.Context, discordID int64, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, balance, err := s.walletRow(ctx, discordID)
	if err != nil {
		return 0, err
	}
	if row < 0 {
		return 0, ErrNotFound
	}
	balance += amount
	if err := s.setBalance(ctx, row, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *SheetsStore) DebitIfSufficient(ctx context.Context, discordID int64, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, balance, err := s.walletRow(ctx, discordID)
	if err != nil {
		return 0, err
	}
	if row < 0 || balance < amount {
		return 0, ErrInsufficientBalance
	}
	balance -= amount
	if err := s.setBalance(ctx, row, balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *SheetsStore) catalogRow(ctx context.Context, name string) (int, *models.CatalogItem, error) {
	rows, err := s.readRange(ctx, catalogRange)
	if err != nil {
		return -1, nil, err
	}
	for i, row := range rows {
		if cellString(row, 0) != name {
			continue
		}
		price, err := cellInt(row, 2)
		if err != nil {
			return -1, nil, fmt.Errorf("catalog row %d: %w", i+2, err)
		}
		return i + 2, &models.CatalogItem{
			Name:       name,
			DriveID:    cellString(row, 1),
			PriceCents: price,
		}, nil
	}
	return -1, nil, nil
}

func (s *SheetsStore) FindItem(ctx context.Context, name string) (*models.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, item, err := s.catalogRow(ctx, name)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *SheetsStore) UpsertItem(ctx context.Context, item *models.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, _, err := s.catalogRow(ctx, item.Name)
	if err != nil {
		return err
	}
	values := []interface{}{item.Name, item.DriveID, strconv.FormatInt(item.PriceCents, 10)}
	if row < 0 {
		return s.appendRow(ctx, catalogRange, values)
	}
	return s.writeRow(ctx, fmt.Sprintf("catalog!A%d:C%d", row, row), values)
}

// RemoveItem blanks the row; deleting sheet rows shifts every index
// underneath a concurrent reader. Blank rows are skipped on read.
func (s *SheetsStore) RemoveItem(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, _, err := s.catalogRow(ctx, name)
	if err != nil {
		return false, err
	}
	if row < 0 {
		return false, nil
	}
	err = s.writeRow(ctx, fmt.Sprintf("catalog!A%d:C%d", row, row),
		[]interface{}{"", "", ""})
	return err == nil, err
}

func (s *SheetsStore) ListItems(ctx context.Context) ([]models.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRange(ctx, catalogRange)
	if err != nil {
		return nil, err
	}
	items := []models.CatalogItem{}
	for i, row := range rows {
		name := cellString(row, 0)
		if name == "" {
			continue
		}
		price, err := cellInt(row, 2)
		if err != nil {
			return nil, fmt.Errorf("catalog row %d: %w", i+2, err)
		}
		items = append(items, models.CatalogItem{
			Name:       name,
			DriveID:    cellString(row, 1),
			PriceCents: price,
		})
	}
	sort.Slice(items, func(a, b int) bool { return items[a].Name < items[b].Name })
	return items, nil
}

func (s *SheetsStore) AppendPurchase(ctx context.Context, rec *models.PurchaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendRow(ctx, ordersRange, []interface{}{
		rec.Reference,
		strconv.FormatInt(rec.DiscordID, 10),
		rec.ItemName,
		rec.DriveID,
		strconv.FormatInt(rec.PriceCents, 10),
		rec.CreatedAt.UTC().Format(time.RFC3339),
		"",
	})
}

func (s *SheetsStore) MarkRefunded(ctx context.Context, reference string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRange(ctx, ordersRange)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if cellString(row, 0) != reference {
			continue
		}
		return s.writeRow(ctx, fmt.Sprintf("orders!G%d", i+2),
			[]interface{}{at.UTC().Format(time.RFC3339)})
	}
	return ErrNotFound
}

func (s *SheetsStore) ListPurchases(ctx context.Context, discordID int64, limit int) ([]models.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readRange(ctx, ordersRange)
	if err != nil {
		return nil, err
	}
	want := strconv.FormatInt(discordID, 10)
	records := []models.PurchaseRecord{}
	for i := len(rows) - 1; i >= 0 && len(records) < limit; i-- {
		row := rows[i]
		if cellString(row, 1) != want {
			continue
		}
		price, err := cellInt(row, 4)
		if err != nil {
			return nil, fmt.Errorf("orders row %d: %w", i+2, err)
		}
		createdAt, err := time.Parse(time.RFC3339, cellString(row, 5))
		if err != nil {
			return nil, fmt.Errorf("orders row %d: %w", i+2, err)
		}
		rec := models.PurchaseRecord{
			ID:         int64(i + 2),
			Reference:  cellString(row, 0),
			DiscordID:  discordID,
			ItemName:   cellString(row, 2),
			DriveID:    cellString(row, 3),
			PriceCents: price,
			CreatedAt:  createdAt,
		}
		if raw := cellString(row, 6); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				rec.RefundedAt = &t
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
