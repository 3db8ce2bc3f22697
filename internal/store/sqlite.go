package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

type userRow struct {
	ID           int64 `gorm:"primaryKey"`
	DiscordID    int64 `gorm:"uniqueIndex;not null"`
	BalanceCents int64 `gorm:"not null;default:0"`
}

func (userRow) TableName() string { return "users" }

type catalogRow struct {
	ID         int64  `gorm:"primaryKey"`
	Name       string `gorm:"uniqueIndex;not null"`
	DriveID    string `gorm:"not null"`
	PriceCents int64  `gorm:"not null"`
}

func (catalogRow) TableName() string { return "catalog" }

type purchaseRow struct {
	ID         int64  `gorm:"primaryKey"`
	Reference  string `gorm:"uniqueIndex;not null"`
	DiscordID  int64  `gorm:"index;not null"`
	ItemName   string `gorm:"not null"`
	DriveID    string `gorm:"not null"`
	PriceCents int64  `gorm:"not null"`
	CreatedAt  time.Time
	RefundedAt *time.Time
}

func (purchaseRow) TableName() string { return "purchases" }

// SqliteStore is the embedded default backend, a single local database
// file with no external process to run.
type SqliteStore struct {
	db *gorm.DB
}

// OpenSqlite opens (or creates) the database at path and migrates the
// schema.
func OpenSqlite(path string) (*SqliteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&userRow{}, &catalogRow{}, &purchaseRow{}); err != nil {
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) EnsureAccount(ctx context.Context, discordID int64) (*models.Account, error) {
	row := userRow{DiscordID: discordID}
	err := s.db.WithContext(ctx).
		Where(userRow{DiscordID: discordID}).
		FirstOrCreate(&row).Error
	if err != nil {
		return nil, err
	}
	return &models.Account{DiscordID: discordID, Balance: row.BalanceCents}, nil
}

func (s *SqliteStore) Balance(ctx context.Context, discordID int64) (int64, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("discord_id = ?", discordID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	return row.BalanceCents, err
}

func (s *SqliteStore) Credit(ctx context.Context, discordID int64, amount int64) (int64, error) {
	result := s.db.WithContext(ctx).Model(&userRow{}).
		Where("discord_id = ?", discordID).
		UpdateColumn("balance_cents", gorm.Expr("balance_cents + ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return s.Balance(ctx, discordID)
}

func (s *SqliteStore) DebitIfSufficient(ctx context.Context, discordID int64, amount int64) (int64, error) {
	result := s.db.WithContext(ctx).Model(&userRow{}).
		Where("discord_id = ? AND balance_cents >= ?", discordID, amount).
		UpdateColumn("balance_cents", gorm.Expr("balance_cents - ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrInsufficientBalance
	}
	return s.Balance(ctx, discordID)
}

func (s *SqliteStore) FindItem(ctx context.Context, name string) (*models.CatalogItem, error) {
	var row catalogRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.CatalogItem{Name: row.Name, DriveID: row.DriveID, PriceCents: row.PriceCents}, nil
}

func (s *SqliteStore) UpsertItem(ctx context.Context, item *models.CatalogItem) error {
	var row catalogRow
	err := s.db.WithContext(ctx).Where("name = ?", item.Name).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.WithContext(ctx).Create(&catalogRow{
			Name:       item.Name,
			DriveID:    item.DriveID,
			PriceCents: item.PriceCents,
		}).Error
	case err != nil:
		return err
	default:
		row.DriveID = item.DriveID
		row.PriceCents = item.PriceCents
		return s.db.WithContext(ctx).Save(&row).Error
	}
}

func (s *SqliteStore) RemoveItem(ctx context.Context, name string) (bool, error) {
	result := s.db.WithContext(ctx).Where("name = ?", name).Delete(&catalogRow{})
	return result.RowsAffected > 0, result.Error
}

func (s *SqliteStore) ListItems(ctx context.Context) ([]models.CatalogItem, error) {
	var rows []catalogRow
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]models.CatalogItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, models.CatalogItem{
			Name:       row.Name,
			DriveID:    row.DriveID,
			PriceCents: row.PriceCents,
		})
	}
	return items, nil
}

func (s *SqliteStore) AppendPurchase(ctx context.Context, rec *models.PurchaseRecord) error {
	row := purchaseRow{
		Reference:  rec.Reference,
		DiscordID:  rec.DiscordID,
		ItemName:   rec.ItemName,
		DriveID:    rec.DriveID,
		PriceCents: rec.PriceCents,
		CreatedAt:  rec.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	rec.ID = row.ID
	return nil
}

func (s *SqliteStore) MarkRefunded(ctx context.Context, reference string, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&purchaseRow{}).
		Where("reference = ?", reference).
		UpdateColumn("refunded_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SqliteStore) ListPurchases(ctx context.Context, discordID int64, limit int) ([]models.PurchaseRecord, error) {
	var rows []purchaseRow
	err := s.db.WithContext(ctx).
		Where("discord_id = ?", discordID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]models.PurchaseRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.PurchaseRecord{
			ID:         row.ID,
			Reference:  row.Reference,
			DiscordID:  row.DiscordID,
			ItemName:   row.ItemName,
			DriveID:    row.DriveID,
			PriceCents: row.PriceCents,
			CreatedAt:  row.CreatedAt,
			RefundedAt: row.RefundedAt,
		})
	}
	return records, nil
}
