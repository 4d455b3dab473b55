package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of a simulated trade.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// TradeStatus represents the lifecycle of a simulated trade.
// PENDING → EXECUTED is the only transition driven by normal operation;
// FAILED is reached only when the simulator shuts down with the trade pending.
type TradeStatus string

const (
	TradePending  TradeStatus = "PENDING"
	TradeExecuted TradeStatus = "EXECUTED"
	TradeFailed   TradeStatus = "FAILED"
)

// Trade es una operación simulada del par KRWQ-FRAX.
type Trade struct {
	ID                string      `json:"id"`
	Side              TradeSide   `json:"type"`
	Pair              string      `json:"pair"`
	NotionalUSD       float64     `json:"amount"`
	PriceAtCreation   float64     `json:"price"`
	CreatedAt         time.Time   `json:"timestamp"`
	ExpectedProfitUSD float64     `json:"profit"`
	Status            TradeStatus `json:"status"`
	SettledAt         *time.Time  `json:"settledAt,omitempty"`
}

// PriceSnapshot is the current market view. Volume and 24h change are
// presentation values re-sampled on every read.
type PriceSnapshot struct {
	VolatilePrice  float64   `json:"krwqPrice"`
	StablePrice    float64   `json:"fraxPrice"`
	Timestamp      time.Time `json:"timestamp"`
	Volume24h      float64   `json:"volume24h"`
	PriceChange24h float64   `json:"priceChange24h"`
}

// ArbitrageOpportunity is one draw of the simulated spread between the two assets.
type ArbitrageOpportunity struct {
	Exists         bool    `json:"exists"`
	ProfitPct      float64 `json:"profitPct"` // percent, e.g. 1.25 = 1.25%
	Recommendation string  `json:"recommendation"`
}

// TradingStats is derived from the trade history on every call.
type TradingStats struct {
	TotalTrades       int             `json:"totalTrades"`
	ExecutedTrades    int             `json:"executedTrades"`
	PendingTrades     int             `json:"pendingTrades"`
	FailedTrades      int             `json:"failedTrades"`
	RealizedProfitUSD decimal.Decimal `json:"totalProfitUSD"`
	WinRate           float64         `json:"winRate"` // fraction of executed trades with profit > 0
	RecentTrades      []Trade         `json:"recentTrades"`
}
