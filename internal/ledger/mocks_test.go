package ledger

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) EnsureAccount(ctx context.Context, discordID int64) (*models.Account, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockStore) Balance(ctx context.Context, discordID int64) (int64, error) {
	args := m.Called(ctx, discordID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) Credit(ctx context.Context, discordID int64, amount int64) (int64, error) {
	args := m.Called(ctx, discordID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) DebitIfSufficient(ctx context.Context, discordID int64, amount int64) (int64, error) {
	args := m.Called(ctx, discordID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) FindItem(ctx context.Context, name string) (*models.CatalogItem, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CatalogItem), args.Error(1)
}

func (m *MockStore) UpsertItem(ctx context.Context, item *models.CatalogItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockStore) RemoveItem(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ListItems(ctx context.Context) ([]models.CatalogItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CatalogItem), args.Error(1)
}

func (m *MockStore) AppendPurchase(ctx context.Context, rec *models.PurchaseRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) MarkRefunded(ctx context.Context, reference string, at time.Time) error {
	args := m.Called(ctx, reference, at)
	return args.Error(0)
}

func (m *MockStore) ListPurchases(ctx context.Context, discordID int64, limit int) ([]models.PurchaseRecord, error) {
	args := m.Called(ctx, discordID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PurchaseRecord), args.Error(1)
}
