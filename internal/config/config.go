package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the bot's full runtime configuration, loaded from .env plus
// environment overrides.
type Config struct {
	DiscordToken string
	AdminIDs     []string
	LinkDelivery bool

	StoreBackend string // sqlite | postgres | sheets
	SqlitePath   string

	SheetsCredentialsFile string
	SheetsSpreadsheetID   string

	CacheTTL        time.Duration
	RefundGuardPath string

	DriveTimeout time.Duration

	OpsAddr         string
	OpsJWTSecret    string
	OpsJWTExpiry    time.Duration
	OpsPasswordHash string

	LogLevel  string
	LogPretty bool
}

// Load reads .env (if present), binds environment variables and applies
// defaults.
func Load() *Config {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.BindEnv("discord.token", "DISCORD_TOKEN")
	viper.BindEnv("discord.admin_ids", "ADMIN_USER_IDS")
	viper.BindEnv("discord.link_delivery", "LINK_DELIVERY")

	viper.BindEnv("store.backend", "STORE_BACKEND")
	viper.BindEnv("store.sqlite_path", "DB_PATH")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("sheets.credentials_file", "SHEETS_CREDENTIALS_FILE")
	viper.BindEnv("sheets.spreadsheet_id", "SHEETS_SPREADSHEET_ID")

	viper.BindEnv("ops.addr", "OPS_ADDR")
	viper.BindEnv("ops.jwt_secret", "OPS_JWT_SECRET")
	viper.BindEnv("ops.jwt_expiry_hours", "OPS_JWT_EXPIRY_HOURS")
	viper.BindEnv("ops.password_hash", "OPS_PASSWORD_HASH")

	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.pretty", "LOG_PRETTY")

	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.sqlite_path", "shopbot.db")
	viper.SetDefault("cache.catalog_ttl", time.Minute)
	viper.SetDefault("refund.guard_path", "refunds.db")
	viper.SetDefault("drive.timeout", 2*time.Minute)
	viper.SetDefault("ops.addr", ":8080")
	viper.SetDefault("ops.jwt_expiry_hours", 12)
	viper.SetDefault("log.level", "info")

	return &Config{
		DiscordToken: strings.TrimSpace(viper.GetString("discord.token")),
		AdminIDs:     splitIDs(viper.GetString("discord.admin_ids")),
		LinkDelivery: viper.GetBool("discord.link_delivery"),

		StoreBackend: viper.GetString("store.backend"),
		SqlitePath:   viper.GetString("store.sqlite_path"),

		SheetsCredentialsFile: viper.GetString("sheets.credentials_file"),
		SheetsSpreadsheetID:   viper.GetString("sheets.spreadsheet_id"),

		CacheTTL:        viper.GetDuration("cache.catalog_ttl"),
		RefundGuardPath: viper.GetString("refund.guard_path"),

		DriveTimeout: viper.GetDuration("drive.timeout"),

		OpsAddr:         viper.GetString("ops.addr"),
		OpsJWTSecret:    viper.GetString("ops.jwt_secret"),
		OpsJWTExpiry:    time.Duration(viper.GetInt("ops.jwt_expiry_hours")) * time.Hour,
		OpsPasswordHash: viper.GetString("ops.password_hash"),
		LogLevel:        viper.GetString("log.level"),
		LogPretty:       viper.GetBool("log.pretty"),
	}
}

// splitIDs parses a comma-separated admin allow-list, dropping anything
// that is not a numeric Discord id.
func splitIDs(raw string) []string {
	ids := []string{}
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
