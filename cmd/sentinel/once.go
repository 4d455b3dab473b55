package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/sentinel/internal/adapters/notify"
	"github.com/alejandrodnm/sentinel/internal/application/ledger"
	"github.com/alejandrodnm/sentinel/internal/application/market"
	"github.com/alejandrodnm/sentinel/internal/application/orchestrator"
)

// runOnce evalúa un tip, imprime la respuesta y, si se abrió un trade, espera
// a su liquidación antes de imprimir las tablas.
func runOnce(
	ctx context.Context,
	orch *orchestrator.Orchestrator,
	sim *market.Simulator,
	led *ledger.Ledger,
	console *notify.Console,
	tip, user string,
) error {
	slog.Info("=== ONCE MODE: single tip evaluation ===")

	res, err := orch.Submit(ctx, orchestrator.Submission{Tip: tip, UserID: user})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	fmt.Fprintln(os.Stdout, res.Response)
	console.PrintEvaluation(res.TipID, res.UserID, res.Evaluation)

	if res.Trade != nil {
		wait := sim.Config().SettleDelay + 500*time.Millisecond
		slog.Info("waiting for trade settlement", "tradeId", res.Trade.ID, "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	console.PrintLeaderboard(led.Leaderboard(ledger.DefaultLeaderboardLimit))
	console.PrintMarket(sim.Snapshot(), sim.Stats())
	return nil
}
