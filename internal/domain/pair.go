package domain

import "time"

// TradingPair is a DEX pair that has been matched to an exchange symbol.
// A pair only enters the catalog after passing token validation against the
// exchange reference price at discovery time; Verified records that fact.
// Discovery never replaces a verified pair with an unverified one for the
// same symbol.
type TradingPair struct {
	Symbol      string    `json:"-"`
	Chain       string    `json:"chain"`
	PairAddress string    `json:"address"`
	DexName     string    `json:"dex"`
	Verified    bool      `json:"verified"`
	UpdatedAt   time.Time `json:"updated"`
}
