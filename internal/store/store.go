// Package store defines the catalog/wallet storage contract and its three
// backends: embedded sqlite (default), Postgres, and a Google Sheet.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

var (
	// ErrNotFound is returned for missing accounts, catalog items or
	// purchase references.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientBalance is returned by DebitIfSufficient when the
	// conditional debit matched no row.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Store is the capability set the ledger needs from a backend. All
// monetary amounts are integer minor units.
type Store interface {
	// EnsureAccount returns the account for discordID, creating it with
	// balance 0 if it does not exist.
	EnsureAccount(ctx context.Context, discordID int64) (*models.Account, error)

	// Balance returns the current balance. ErrNotFound if no account.
	Balance(ctx context.Context, discordID int64) (int64, error)

	// Credit unconditionally adds amount and returns the new balance.
	// ErrNotFound if no account.
	Credit(ctx context.Context, discordID int64, amount int64) (int64, error)

	// DebitIfSufficient subtracts amount only if the balance covers it,
	// as a single conditional write, and returns the new balance.
	// ErrInsufficientBalance otherwise; no partial state in either case.
	DebitIfSufficient(ctx context.Context, discordID int64, amount int64) (int64, error)

	FindItem(ctx context.Context, name string) (*models.CatalogItem, error)
	UpsertItem(ctx context.Context, item *models.CatalogItem) error
	RemoveItem(ctx context.Context, name string) (bool, error)
	ListItems(ctx context.Context) ([]models.CatalogItem, error)

	// AppendPurchase inserts the immutable purchase row and fills in its ID.
	AppendPurchase(ctx context.Context, rec *models.PurchaseRecord) error

	// MarkRefunded stamps refunded_at on the purchase with the given
	// reference. ErrNotFound if the reference is unknown.
	MarkRefunded(ctx context.Context, reference string, at time.Time) error

	// ListPurchases returns up to limit purchases for the account, most
	// recent first. Empty slice for unknown accounts.
	ListPurchases(ctx context.Context, discordID int64, limit int) ([]models.PurchaseRecord, error)
}
