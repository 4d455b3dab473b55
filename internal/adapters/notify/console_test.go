package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/sentinel/internal/adapters/notify"
	"github.com/alejandrodnm/sentinel/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTrade(status domain.TradeStatus, profit float64) domain.Trade {
	settled := time.Now()
	return domain.Trade{
		ID:                "trade_0190abcd-1234-7000-8000-000000000000",
		Side:              domain.SideBuy,
		Pair:              "KRWQ-FRAX",
		NotionalUSD:       850,
		PriceAtCreation:   0.000742,
		CreatedAt:         settled.Add(-3 * time.Second),
		ExpectedProfitUSD: profit,
		Status:            status,
		SettledAt:         &settled,
	}
}

func TestConsole_TradeSettled(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	require.NoError(t, c.TradeSettled(context.Background(), makeTrade(domain.TradeExecuted, 12.34)))

	out := buf.String()
	assert.Contains(t, out, "trade_0190abcd ")
	assert.Contains(t, out, "BUY KRWQ-FRAX")
	assert.Contains(t, out, "$850.00")
	assert.Contains(t, out, "EXECUTED")
	assert.Contains(t, out, "profit $12.34")
}

func TestConsole_PrintEvaluation(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintEvaluation("tip_0190ffff-aaaa", "alice", domain.TipEvaluation{
		Verified:      true,
		Confidence:    85,
		Strategy:      domain.StrategyBuy,
		RiskLevel:     domain.RiskMedium,
		CommissionPct: 8.5,
		QualityScore:  82,
	})

	out := buf.String()
	assert.Contains(t, out, "tip_0190ffff")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "YES")
	assert.Contains(t, out, "85%")
	assert.Contains(t, out, "MEDIUM")
	assert.Contains(t, out, "8.50%")
}

func TestConsole_PrintLeaderboard(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintLeaderboard([]domain.UserAggregate{
		{UserID: "alice", TotalTips: 3, VerifiedTips: 2, TotalCommission: 17, AvgConfidence: 70, AvgQuality: 60, SuccessRate: 2.0 / 3},
		{UserID: "a-very-long-contributor-name-here", TotalTips: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "LEADERBOARD (top 2)")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "66.7%")
	assert.Contains(t, out, "17.00%")
	assert.Contains(t, out, "a-very-long-contr...")
	assert.NotContains(t, out, "a-very-long-contributor-name-here")
}

func TestConsole_PrintLeaderboard_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf).PrintLeaderboard(nil)
	assert.Contains(t, buf.String(), "No tips recorded yet")
}

func TestConsole_PrintMarket(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	snap := domain.PriceSnapshot{VolatilePrice: 0.000742, StablePrice: 1.0003, Timestamp: time.Now(), Volume24h: 1_500_000, PriceChange24h: -1.25}
	stats := domain.TradingStats{
		TotalTrades:       2,
		ExecutedTrades:    1,
		PendingTrades:     1,
		RealizedProfitUSD: decimal.NewFromFloat(12.34),
		WinRate:           1,
		RecentTrades:      []domain.Trade{makeTrade(domain.TradeExecuted, 12.34), makeTrade(domain.TradePending, 5)},
	}
	c.PrintMarket(snap, stats)

	out := buf.String()
	assert.Contains(t, out, "KRWQ $0.000742")
	assert.Contains(t, out, "-1.25%")
	assert.Contains(t, out, "realized $12.34")
	assert.Contains(t, out, "win rate 100.0%")
	assert.Contains(t, out, "PENDING")
}

func TestConsole_PrintMarket_NoTrades(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf).PrintMarket(domain.PriceSnapshot{Timestamp: time.Now()}, domain.TradingStats{})
	assert.Contains(t, buf.String(), "trades 0")
	assert.NotContains(t, buf.String(), "Trade")
}
