package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/viper"

	"github.com/FAST22588/bot-Discord-v3/internal/models"
)

// PGConfig holds Postgres connection settings.
type PGConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// GetPGConfig returns Postgres configuration with defaults.
func GetPGConfig() *PGConfig {
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "shopbot")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Minute*5)

	return &PGConfig{
		Host:            viper.GetString("database.host"),
		Port:            viper.GetString("database.port"),
		User:            viper.GetString("database.user"),
		Password:        viper.GetString("database.password"),
		Name:            viper.GetString("database.name"),
		SSLMode:         viper.GetString("database.ssl_mode"),
		MaxOpenConns:    viper.GetInt("database.max_open_conns"),
		MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
	}
}

// PostgresStore implements Store on database/sql + lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing connection.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres dials Postgres using viper config and verifies the
// connection.
func OpenPostgres() (*PostgresStore, error) {
	config := GetPGConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Name, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	return &PostgresStore{db: db}, nil
}

// Migrate creates the users/catalog/purchases tables if absent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			discord_id BIGINT UNIQUE NOT NULL,
			balance_cents BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS catalog (
			id BIGSERIAL PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			drive_id TEXT NOT NULL,
			price_cents BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id BIGSERIAL PRIMARY KEY,
			reference TEXT UNIQUE NOT NULL,
			discord_id BIGINT NOT NULL,
			item_name TEXT NOT NULL,
			drive_id TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			refunded_at TIMESTAMPTZ
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) EnsureAccount(ctx context.Context, discordID int64) (*models.Account, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (discord_id, balance_cents)
		VALUES ($1, 0)
		ON CONFLICT (discord_id) DO NOTHING`, discordID)
	if err != nil {
		return nil, err
	}

	account := &models.Account{DiscordID: discordID}
	err = s.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM users WHERE discord_id = $1`, discordID).
		Scan(&account.Balance)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *PostgresStore) Balance(ctx context.Context, discordID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM users WHERE discord_id = $1`, discordID).
		Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return balance, err
}

func (s *PostgresStore) Credit(ctx context.Context, discordID int64, amount int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET balance_cents = balance_cents + $1
		WHERE discord_id = $2
		RETURNING balance_cents`, amount, discordID).
		Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return balance, err
}

// DebitIfSufficient is a single conditional statement so two concurrent
// purchases cannot both pass a stale funds check.
func (s *PostgresStore) DebitIfSufficient(ctx context.Context, discordID int64, amount int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET balance_cents = balance_cents - $1
		WHERE discord_id = $2 AND balance_cents >= $1
		RETURNING balance_cents`, amount, discordID).
		Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrInsufficientBalance
	}
	return balance, err
}

func (s *PostgresStore) FindItem(ctx context.Context, name string) (*models.CatalogItem, error) {
	item := &models.CatalogItem{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT drive_id, price_cents FROM catalog WHERE name = $1`, name).
		Scan(&item.DriveID, &item.PriceCents)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *PostgresStore) UpsertItem(ctx context.Context, item *models.CatalogItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog (name, drive_id, price_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET drive_id = excluded.drive_id, price_cents = excluded.price_cents`,
		item.Name, item.DriveID, item.PriceCents)
	return err
}

func (s *PostgresStore) RemoveItem(ctx context.Context, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM catalog WHERE name = $1`, name)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListItems(ctx context.Context) ([]models.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, drive_id, price_cents FROM catalog ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.CatalogItem{}
	for rows.Next() {
		var item models.CatalogItem
		if err := rows.Scan(&item.Name, &item.DriveID, &item.PriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) AppendPurchase(ctx context.Context, rec *models.PurchaseRecord) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO purchases (reference, discord_id, item_name, drive_id, price_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rec.Reference, rec.DiscordID, rec.ItemName, rec.DriveID, rec.PriceCents, rec.CreatedAt).
		Scan(&rec.ID)
}

func (s *PostgresStore) MarkRefunded(ctx context.Context, reference string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE purchases SET refunded_at = $1 WHERE reference = $2`, at, reference)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPurchases(ctx context.Context, discordID int64, limit int) ([]models.PurchaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference, item_name, drive_id, price_cents, created_at, refunded_at
		FROM purchases
		WHERE discord_id = $1
		ORDER BY id DESC
		LIMIT $2`, discordID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.PurchaseRecord{}
	for rows.Next() {
		rec := models.PurchaseRecord{DiscordID: discordID}
		var refunded sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Reference, &rec.ItemName, &rec.DriveID,
			&rec.PriceCents, &rec.CreatedAt, &refunded); err != nil {
			return nil, err
		}
		if refunded.Valid {
			t := refunded.Time
			rec.RefundedAt = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
