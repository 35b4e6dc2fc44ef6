package catalog

// Goods is a physical or virtual item priced in gold coins.
type Goods struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	PriceCoins int64  `db:"price_coins" json:"price_coins"`
	Active     bool   `db:"active" json:"active"`
}

// CoinBundle is a gold-coin top-up package priced in fiat.
type CoinBundle struct {
	ID       string  `db:"id" json:"id"`
	Coins    int64   `db:"coins" json:"coins"`
	Price    float64 `db:"price" json:"price"`
	Currency string  `db:"currency" json:"currency"`
	Active   bool    `db:"active" json:"active"`
}

// CreditBundle is a translation-credit top-up package priced in fiat.
type CreditBundle struct {
	ID       string  `db:"id" json:"id"`
	Credits  int64   `db:"credits" json:"credits"`
	Price    float64 `db:"price" json:"price"`
	Currency string  `db:"currency" json:"currency"`
	Active   bool    `db:"active" json:"active"`
}

// VIPTier is a membership tier with a per-month fiat price.
type VIPTier struct {
	Level        string  `db:"level" json:"level"`
	MonthlyPrice float64 `db:"monthly_price" json:"monthly_price"`
	Currency     string  `db:"currency" json:"currency"`
	Active       bool    `db:"active" json:"active"`
}
