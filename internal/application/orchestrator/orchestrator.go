// Package orchestrator runs one tip submission end to end: pipeline call,
// extraction, ledger append, optional simulated trade and rendering.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/sentinel/internal/application/extraction"
	"github.com/alejandrodnm/sentinel/internal/application/ledger"
	"github.com/alejandrodnm/sentinel/internal/application/market"
	"github.com/alejandrodnm/sentinel/internal/domain"
	"github.com/alejandrodnm/sentinel/internal/observability"
	"github.com/alejandrodnm/sentinel/internal/ports"
)

const (
	DefaultPipelineTimeout    = 90 * time.Second
	DefaultTradeMinConfidence = 50
	journalTimeout            = 5 * time.Second
)

// Config holds the submission policy.
type Config struct {
	PipelineTimeout    time.Duration
	TradeMinConfidence int
}

// Submission is one incoming tip. An empty UserID becomes domain.AnonymousUser.
type Submission struct {
	Tip    string
	UserID string
}

// Result is what a successful submission produces.
type Result struct {
	Response   string
	Timestamp  time.Time
	UserID     string
	TipID      string
	Evaluation domain.TipEvaluation
	Trade      *domain.Trade // nil when no trade was opened
}

// Orchestrator wires the pipeline to the ledger and the simulator.
type Orchestrator struct {
	pipeline  ports.Pipeline
	extractor *extraction.Engine
	ledger    *ledger.Ledger
	market    *market.Simulator
	journal   ports.Journal // optional
	metrics   *observability.Metrics
	cfg       Config
}

// New creates an orchestrator. journal and metrics may be nil.
func New(
	pipeline ports.Pipeline,
	extractor *extraction.Engine,
	led *ledger.Ledger,
	sim *market.Simulator,
	journal ports.Journal,
	metrics *observability.Metrics,
	cfg Config,
) *Orchestrator {
	if cfg.PipelineTimeout <= 0 {
		cfg.PipelineTimeout = DefaultPipelineTimeout
	}
	if cfg.TradeMinConfidence <= 0 {
		cfg.TradeMinConfidence = DefaultTradeMinConfidence
	}
	if extractor == nil {
		extractor = extraction.New(extraction.DefaultMaxCommissionPct)
	}
	return &Orchestrator{
		pipeline:  pipeline,
		extractor: extractor,
		ledger:    led,
		market:    sim,
		journal:   journal,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// Submit processes one tip. It returns domain.ErrInvalidTip for blank input
// and an error wrapping domain.ErrPipeline when the pipeline fails; in both
// cases nothing is written to the ledger and no trade is attempted.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*Result, error) {
	if strings.TrimSpace(sub.Tip) == "" {
		o.metrics.RecordSubmission(observability.OutcomeInvalid)
		return nil, domain.ErrInvalidTip
	}
	userID := strings.TrimSpace(sub.UserID)
	if userID == "" {
		userID = domain.AnonymousUser
	}
	tipID := domain.NewID("tip")

	slog.Info("orchestrator: new tip",
		"tipId", tipID,
		"user", userID,
		"tip", domain.TruncateRunes(sub.Tip, 60),
	)

	started := time.Now()
	raw, err := o.ask(ctx, sub.Tip)
	elapsed := time.Since(started)
	o.metrics.RecordPipeline(elapsed)

	run := domain.PipelineRun{
		TipID:       tipID,
		UserID:      userID,
		Tip:         sub.Tip,
		RawResponse: raw,
		StartedAt:   started.UTC(),
		Duration:    elapsed,
	}
	if err != nil {
		run.Err = err.Error()
		o.record(run)
		o.metrics.RecordSubmission(observability.OutcomeFailed)
		slog.Error("orchestrator: pipeline failed", "tipId", tipID, "elapsed", elapsed, "err", err)
		return nil, fmt.Errorf("orchestrator.Submit: %w: %w", domain.ErrPipeline, err)
	}

	ev := o.extractor.Extract(raw)
	run.Verified, run.Confidence = ev.Verified, ev.Confidence
	o.record(run)

	now := time.Now().UTC()
	o.ledger.Append(domain.NewTipRecord(tipID, userID, sub.Tip, now, ev))
	o.metrics.SetLedgerSize(o.ledger.Len())

	slog.Info("orchestrator: tip evaluated",
		"tipId", tipID,
		"verified", ev.Verified,
		"confidence", ev.Confidence,
		"quality", ev.QualityScore,
		"strategy", ev.Strategy,
		"risk", ev.RiskLevel,
		"commission", fmt.Sprintf("%.2f%%", ev.CommissionPct),
		"elapsed", elapsed.Round(time.Millisecond),
	)

	res := &Result{
		Response:   Render(ev),
		Timestamp:  now,
		UserID:     userID,
		TipID:      tipID,
		Evaluation: ev,
	}

	outcome := observability.OutcomeRejected
	if ev.Verified {
		outcome = observability.OutcomeVerified
	}
	o.metrics.RecordSubmission(outcome)

	if ev.Verified && ev.Confidence >= o.cfg.TradeMinConfidence {
		if t, ok := o.market.SimulateFromIntelligence(ev.Verified, ev.Confidence, ev.QualityScore); ok {
			o.metrics.RecordTradeOpened("intelligence")
			slog.Info("orchestrator: trade initiated", "tipId", tipID, "tradeId", t.ID)
			res.Trade = &t
		}
	}
	return res, nil
}

// ask calls the pipeline under PipelineTimeout.
func (o *Orchestrator) ask(ctx context.Context, tip string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.PipelineTimeout)
	defer cancel()

	raw, err := o.pipeline.Ask(ctx, tip)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return raw, fmt.Errorf("timed out after %s: %w", o.cfg.PipelineTimeout, err)
		}
		return raw, err
	}
	return raw, nil
}

// record journals a pipeline run. Failures are logged and never reach the caller.
func (o *Orchestrator) record(run domain.PipelineRun) {
	if o.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := o.journal.RecordRun(ctx, run); err != nil {
		o.metrics.RecordJournalError()
		slog.Warn("orchestrator: journal write failed", "tipId", run.TipID, "err", err)
	}
}
