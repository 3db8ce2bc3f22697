package models

import "time"

// Account is a Discord user's wallet. Balances are integer minor units
// (satang); never store currency as floats.
type Account struct {
	DiscordID int64 `json:"discord_id" db:"discord_id"`
	Balance   int64 `json:"balance_cents" db:"balance_cents"`
}

// CatalogItem is one purchasable entry, keyed by unique name. DriveID is
// an opaque asset locator (a Google Drive file id).
type CatalogItem struct {
	Name       string `json:"name" db:"name" validate:"required,max=100"`
	DriveID    string `json:"drive_id" db:"drive_id" validate:"required"`
	PriceCents int64  `json:"price_cents" db:"price_cents" validate:"gte=0"`
}

// PurchaseRecord is the immutable audit row written once per successful
// purchase. ItemName and PriceCents are snapshots taken at purchase time
// and survive later catalog edits. RefundedAt is set when a delivery
// failure triggered a compensating credit.
type PurchaseRecord struct {
	ID         int64      `json:"id" db:"id"`
	Reference  string     `json:"reference" db:"reference"`
	DiscordID  int64      `json:"discord_id" db:"discord_id"`
	ItemName   string     `json:"item_name" db:"item_name"`
	DriveID    string     `json:"drive_id" db:"drive_id"`
	PriceCents int64      `json:"price_cents" db:"price_cents"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	RefundedAt *time.Time `json:"refunded_at,omitempty" db:"refunded_at"`
}

// CreditRequest is an administrative top-up payload.
type CreditRequest struct {
	DiscordID   int64 `json:"discord_id" validate:"required"`
	AmountCents int64 `json:"amount_cents" validate:"gte=0"`
}
