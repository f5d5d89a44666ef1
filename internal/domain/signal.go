package domain

import "time"

// Direction states which side is expected to move to close the spread.
// LONG means the exchange price is expected to rise toward the DEX price.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// DirectionFor derives the direction from a signed spread percentage.
func DirectionFor(spreadPercent float64) Direction {
	if spreadPercent > 0 {
		return DirectionLong
	}
	return DirectionShort
}

// Signal is one detected spread opportunity. Created by the scanner after
// all filters pass; closed exactly once by the tracker (guarded by IsActive).
type Signal struct {
	ID              string
	Symbol          string
	Direction       Direction
	SpreadPercent   float64 // absolute spread at detection
	NetProfit       float64 // spread minus total fees
	ExchangePrice   float64
	DexPrice        float64
	Chain           string
	DexName         string
	DexURL          string
	LiquidityUSD    float64
	Volume24hUSD    float64
	QualityScore    float64
	DepositEnabled  bool
	WithdrawEnabled bool
	CreatedAt       time.Time
	ClosedAt        *time.Time
	IsActive        bool
}

// Outcome classifies how a closed signal resolved.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeDraw Outcome = "draw"
	OutcomeLose Outcome = "lose"
)

// SignalOutcome is the terminal record of a closed signal, written exactly
// once in the same transaction that flips the signal inactive.
type SignalOutcome struct {
	SignalID           string
	Outcome            Outcome
	InitialSpread      float64
	FinalSpread        float64
	PriceChangePercent float64
	ClosedAt           time.Time
}

// ClosedSignal bundles a signal with its outcome for closure notifications.
type ClosedSignal struct {
	Signal             Signal
	Outcome            Outcome
	FinalSpread        float64
	PriceChangePercent float64
	AlignSeconds       int
}

// TokenStats aggregates historical outcomes for one symbol. WinRate is a
// percentage over all closed signals for the symbol.
type TokenStats struct {
	Symbol    string
	Wins      int
	Draws     int
	Losses    int
	Total     int
	WinRate   float64
	AvgPnL    float64
	AvgSpread float64
	MaxSpread float64
}

// Stats aggregates outcomes across all symbols.
type Stats struct {
	TotalSignals int
	AvgSpread    float64
	AvgChange    float64
	Wins         int
	Draws        int
	Losses       int
}

// PricePoint is one CEX/DEX price observation kept for chart history.
type PricePoint struct {
	Symbol        string
	Chain         string
	CexPrice      float64
	DexPrice      float64
	SpreadPercent float64 // signed
	Timestamp     time.Time
}
