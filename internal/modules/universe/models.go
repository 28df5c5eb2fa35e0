// Package universe manages the investable universe: the registry of
// tradable securities and their latest prices. Prices are pushed in by the
// operator or external tooling; nothing here talks to a market-data feed.
package universe

// Security represents a tradable security in universe.db
type Security struct {
	Ticker         string   `json:"ticker"`
	Name           string   `json:"name"`
	Active         bool     `json:"active"`
	CurrentPrice   *float64 `json:"current_price,omitempty"`
	PriceUpdatedAt *int64   `json:"price_updated_at,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// SecurityUpsert is a security create/update request
type SecurityUpsert struct {
	Ticker string   `json:"ticker"`
	Name   string   `json:"name"`
	Active *bool    `json:"active,omitempty"` // defaults to true
	Price  *float64 `json:"price,omitempty"`
}

// PriceUpdate is a single price push
type PriceUpdate struct {
	Price float64 `json:"price"`
}

// BulkPriceUpdate is a batch price push keyed by ticker
type BulkPriceUpdate struct {
	Prices map[string]float64 `json:"prices"`
}
