package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/sentinel/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.TradeNotifier y pinta las tablas del modo -once.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// TradeSettled imprime una línea por liquidación.
func (c *Console) TradeSettled(_ context.Context, t domain.Trade) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := t.CreatedAt
	if t.SettledAt != nil {
		at = *t.SettledAt
	}
	fmt.Fprintf(c.out, "[%s] trade %s %s %s $%.2f at %.6f → %s (profit $%.2f)\n",
		at.Local().Format("15:04:05"), shortID(t.ID), t.Side, t.Pair,
		t.NotionalUSD, t.PriceAtCreation, t.Status, t.ExpectedProfitUSD)
	return nil
}

// PrintEvaluation imprime el resumen de una evaluación.
func (c *Console) PrintEvaluation(tipID, userID string, ev domain.TipEvaluation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	table := tablewriter.NewWriter(c.out)
	table.Header("Tip", "User", "Verified", "Conf", "Strategy", "Risk", "Commission", "Quality")
	table.Append(
		shortID(tipID),
		truncate(userID, 16),
		yesNo(ev.Verified),
		fmt.Sprintf("%d%%", ev.Confidence),
		string(ev.Strategy),
		string(ev.RiskLevel),
		fmt.Sprintf("%.2f%%", ev.CommissionPct),
		fmt.Sprintf("%d", ev.QualityScore),
	)
	table.Render()
}

// PrintLeaderboard imprime el ranking de contribuidores.
func (c *Console) PrintLeaderboard(board []domain.UserAggregate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(board) == 0 {
		fmt.Fprintln(c.out, "No tips recorded yet")
		return
	}

	fmt.Fprintf(c.out, "\n=== LEADERBOARD (top %d) ===\n", len(board))
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "User", "Tips", "Verified", "Success", "Avg conf", "Avg quality", "Commission")
	for i, u := range board {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(u.UserID, 20),
			fmt.Sprintf("%d", u.TotalTips),
			fmt.Sprintf("%d", u.VerifiedTips),
			fmt.Sprintf("%.1f%%", u.SuccessRate*100),
			fmt.Sprintf("%.1f", u.AvgConfidence),
			fmt.Sprintf("%.1f", u.AvgQuality),
			fmt.Sprintf("%.2f%%", u.TotalCommission),
		)
	}
	table.Render()
}

// PrintMarket imprime precios, estadísticas y los trades recientes.
func (c *Console) PrintMarket(snap domain.PriceSnapshot, st domain.TradingStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n=== MARKET [%s] ===\n", snap.Timestamp.Local().Format("15:04:05"))
	fmt.Fprintf(c.out, "  KRWQ $%.6f | FRAX $%.4f | vol24h $%.0f | 24h %+.2f%%\n",
		snap.VolatilePrice, snap.StablePrice, snap.Volume24h, snap.PriceChange24h)
	fmt.Fprintf(c.out, "  trades %d (executed %d, pending %d, failed %d) | realized $%s | win rate %.1f%%\n",
		st.TotalTrades, st.ExecutedTrades, st.PendingTrades, st.FailedTrades,
		st.RealizedProfitUSD.StringFixed(2), st.WinRate*100)

	if len(st.RecentTrades) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Trade", "Side", "Pair", "Amount", "Price", "Profit", "Status", "Created")
	for _, t := range st.RecentTrades {
		table.Append(
			shortID(t.ID),
			string(t.Side),
			t.Pair,
			fmt.Sprintf("$%.2f", t.NotionalUSD),
			fmt.Sprintf("%.6f", t.PriceAtCreation),
			fmt.Sprintf("$%.2f", t.ExpectedProfitUSD),
			string(t.Status),
			t.CreatedAt.Local().Format(time.TimeOnly),
		)
	}
	table.Render()
}

// --- helpers ---

// shortID recorta "trade_0190abcd-..." a "trade_0190abcd".
func shortID(id string) string {
	prefix, rest, ok := strings.Cut(id, "_")
	if !ok || len(rest) <= 8 {
		return id
	}
	return prefix + "_" + rest[:8]
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
