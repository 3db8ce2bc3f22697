// Package ledger implements the purchase flow: funds check, debit,
// purchase record, and compensating credit when delivery fails after
// payment.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/FAST22588/bot-Discord-v3/internal/cache"
	"github.com/FAST22588/bot-Discord-v3/internal/models"
	"github.com/FAST22588/bot-Discord-v3/internal/store"
)

// HistoryLimit bounds ListHistory output.
const HistoryLimit = 50

var (
	// ErrItemNotFound means the requested item is not in the catalog.
	ErrItemNotFound = errors.New("item not found in catalog")

	// ErrNegativeAmount rejects negative credits and refunds.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrStoreUnavailable wraps backend failures so callers can tell a
	// broken store from a validation failure.
	ErrStoreUnavailable = errors.New("catalog/wallet store unavailable")
)

// InsufficientFundsError carries the amount still missing.
type InsufficientFundsError struct {
	Shortfall int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds, short %d", e.Shortfall)
}

// PurchaseResult is returned on a successful debit. The caller delivers
// the asset next and must Compensate with Reference if that fails.
type PurchaseResult struct {
	Reference  string
	ItemName   string
	DriveID    string
	PricePaid  int64
	NewBalance int64
}

// Service executes ledger operations against a Store. Debit and credit
// for one account are serialized with a per-account mutex; the SQL
// stores additionally issue the debit as one conditional statement, so
// two concurrent purchases cannot both spend the same funds.
type Service struct {
	store    store.Store
	catalog  *cache.Catalog
	validate *validator.Validate
	log      zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New builds a Service. catalog may be nil to disable listing cache.
func New(st store.Store, catalog *cache.Catalog, log zerolog.Logger) *Service {
	return &Service{
		store:    st,
		catalog:  catalog,
		validate: validator.New(),
		log:      log.With().Str("component", "ledger").Logger(),
		locks:    map[int64]*sync.Mutex{},
	}
}

func (s *Service) accountLock(discordID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[discordID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[discordID] = l
	}
	return l
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// AttemptPurchase validates and executes one purchase. The account is
// created with balance 0 before the catalog lookup, so even an
// ItemNotFound attempt leaves a zero-balance account behind.
func (s *Service) AttemptPurchase(ctx context.Context, discordID int64, itemName string) (*PurchaseResult, error) {
	lock := s.accountLock(discordID)
	lock.Lock()
	defer lock.Unlock()

	account, err := s.store.EnsureAccount(ctx, discordID)
	if err != nil {
		return nil, storeErr(err)
	}

	item, err := s.store.FindItem(ctx, itemName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}

	if account.Balance < item.PriceCents {
		return nil, &InsufficientFundsError{Shortfall: item.PriceCents - account.Balance}
	}

	newBalance, err := s.store.DebitIfSufficient(ctx, discordID, item.PriceCents)
	if errors.Is(err, store.ErrInsufficientBalance) {
		// The conditional write lost to a concurrent spend.
		balance, berr := s.store.Balance(ctx, discordID)
		if berr != nil {
			return nil, storeErr(berr)
		}
		return nil, &InsufficientFundsError{Shortfall: item.PriceCents - balance}
	}
	if err != nil {
		return nil, storeErr(err)
	}

	rec := &models.PurchaseRecord{
		Reference:  uuid.NewString(),
		DiscordID:  discordID,
		ItemName:   item.Name,
		DriveID:    item.DriveID,
		PriceCents: item.PriceCents,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.AppendPurchase(ctx, rec); err != nil {
		// The debit committed without its audit row. Undo it so the
		// invariants hold, then report the store failure.
		if _, cerr := s.store.Credit(ctx, discordID, item.PriceCents); cerr != nil {
			s.log.Error().Err(cerr).
				Int64("discord_id", discordID).
				Int64("amount", item.PriceCents).
				Msg("failed to undo debit after record insert failure, manual reconciliation required")
		}
		return nil, storeErr(err)
	}

	s.log.Info().
		Str("reference", rec.Reference).
		Int64("discord_id", discordID).
		Str("item", item.Name).
		Int64("price_cents", item.PriceCents).
		Msg("purchase committed")

	return &PurchaseResult{
		Reference:  rec.Reference,
		ItemName:   item.Name,
		DriveID:    item.DriveID,
		PricePaid:  item.PriceCents,
		NewBalance: newBalance,
	}, nil
}

// Compensate credits amount back after a delivery failure and stamps
// the purchase row as refunded. It is not idempotent; the delivery call
// site guards it with the refund guard so a retry cannot double-credit.
func (s *Service) Compensate(ctx context.Context, discordID int64, reference string, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}

	lock := s.accountLock(discordID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.Credit(ctx, discordID, amount); err != nil {
		return storeErr(err)
	}

	if err := s.store.MarkRefunded(ctx, reference, time.Now().UTC()); err != nil {
		// Money is back; the row just lacks its refund stamp.
		s.log.Error().Err(err).
			Str("reference", reference).
			Msg("refund applied but purchase row not stamped")
	}

	s.log.Warn().
		Str("reference", reference).
		Int64("discord_id", discordID).
		Int64("amount", amount).
		Msg("compensating refund applied")
	return nil
}

// CreditAccount is the administrative top-up. Negative amounts are
// rejected rather than silently becoming debits.
func (s *Service) CreditAccount(ctx context.Context, discordID int64, amount int64) (int64, error) {
	if err := s.validate.Struct(&models.CreditRequest{DiscordID: discordID, AmountCents: amount}); err != nil {
		return 0, ErrNegativeAmount
	}

	lock := s.accountLock(discordID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.EnsureAccount(ctx, discordID); err != nil {
		return 0, storeErr(err)
	}
	balance, err := s.store.Credit(ctx, discordID, amount)
	if err != nil {
		return 0, storeErr(err)
	}
	return balance, nil
}

// Balance reads the current balance, creating the account lazily.
func (s *Service) Balance(ctx context.Context, discordID int64) (int64, error) {
	account, err := s.store.EnsureAccount(ctx, discordID)
	if err != nil {
		return 0, storeErr(err)
	}
	return account.Balance, nil
}

// ListHistory returns up to HistoryLimit purchases, most recent first.
// It never creates an account.
func (s *Service) ListHistory(ctx context.Context, discordID int64) ([]models.PurchaseRecord, error) {
	records, err := s.store.ListPurchases(ctx, discordID, HistoryLimit)
	if err != nil {
		return nil, storeErr(err)
	}
	return records, nil
}

// UpsertCatalogItem creates or overwrites the catalog entry keyed by
// name and drops the cached listing.
func (s *Service) UpsertCatalogItem(ctx context.Context, item *models.CatalogItem) error {
	if err := s.validate.Struct(item); err != nil {
		return fmt.Errorf("invalid catalog item: %w", err)
	}
	if err := s.store.UpsertItem(ctx, item); err != nil {
		return storeErr(err)
	}
	s.catalog.Invalidate(ctx)
	return nil
}

// RemoveCatalogItem deletes the entry and reports whether it existed.
func (s *Service) RemoveCatalogItem(ctx context.Context, name string) (bool, error) {
	removed, err := s.store.RemoveItem(ctx, name)
	if err != nil {
		return false, storeErr(err)
	}
	if removed {
		s.catalog.Invalidate(ctx)
	}
	return removed, nil
}

// ListCatalog returns the name-sorted catalog, serving from the listing
// cache when warm.
func (s *Service) ListCatalog(ctx context.Context) ([]models.CatalogItem, error) {
	if items, ok := s.catalog.Get(ctx); ok {
		return items, nil
	}
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	s.catalog.Set(ctx, items)
	return items, nil
}
