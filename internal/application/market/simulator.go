// Package market simula el par KRWQ-FRAX: precios, spread de arbitraje y el
// ciclo de vida de los trades (PENDING → EXECUTED, o FAILED al cerrar).
package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/sentinel/internal/domain"
	"github.com/alejandrodnm/sentinel/internal/observability"
	"github.com/alejandrodnm/sentinel/internal/ports"
	"github.com/shopspring/decimal"
)

const notifyTimeout = 10 * time.Second

// Config holds every band, threshold and cap of the simulation.
// Zero values are replaced by DefaultConfig values.
type Config struct {
	Pair                 string
	InitialVolatilePrice float64
	InitialStablePrice   float64

	TickInterval time.Duration
	SettleDelay  time.Duration

	// VolatileBand/StableBand are the full width of the symmetric per-tick move
	// (0.01 = ±0.5%).
	VolatileBand float64
	StableBand   float64
	StableFloor  float64
	StableCeil   float64

	// Spread en porcentaje.
	SpreadMinPct   float64
	SpreadMaxPct   float64
	OpportunityPct float64

	VolumeBase     float64
	VolumeRange    float64
	Change24hRange float64

	MaxTrades       int
	RecentTrades    int
	BaseNotionalUSD float64
	MinConfidence   int
	MinQuality      int
}

// DefaultConfig returns the stock KRWQ-FRAX simulation.
func DefaultConfig() Config {
	return Config{
		Pair:                 "KRWQ-FRAX",
		InitialVolatilePrice: 0.0012,
		InitialStablePrice:   0.9998,
		TickInterval:         10 * time.Second,
		SettleDelay:          2 * time.Second,
		VolatileBand:         0.01,
		StableBand:           0.0002,
		StableFloor:          0.995,
		StableCeil:           1.005,
		SpreadMinPct:         0.3,
		SpreadMaxPct:         2.0,
		OpportunityPct:       0.5,
		VolumeBase:           1_250_000,
		VolumeRange:          250_000,
		Change24hRange:       5,
		MaxTrades:            50,
		RecentTrades:         10,
		BaseNotionalUSD:      1000,
		MinConfidence:        50,
		MinQuality:           30,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.Pair == "" {
		c.Pair = d.Pair
	}
	if c.InitialVolatilePrice <= 0 {
		c.InitialVolatilePrice = d.InitialVolatilePrice
	}
	if c.InitialStablePrice <= 0 {
		c.InitialStablePrice = d.InitialStablePrice
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.VolatileBand <= 0 {
		c.VolatileBand = d.VolatileBand
	}
	if c.StableBand <= 0 {
		c.StableBand = d.StableBand
	}
	if c.StableFloor <= 0 || c.StableCeil <= c.StableFloor {
		c.StableFloor, c.StableCeil = d.StableFloor, d.StableCeil
	}
	if c.SpreadMaxPct <= c.SpreadMinPct || c.SpreadMinPct < 0 {
		c.SpreadMinPct, c.SpreadMaxPct = d.SpreadMinPct, d.SpreadMaxPct
	}
	if c.OpportunityPct <= 0 {
		c.OpportunityPct = d.OpportunityPct
	}
	if c.VolumeBase <= 0 {
		c.VolumeBase = d.VolumeBase
	}
	if c.VolumeRange <= 0 {
		c.VolumeRange = d.VolumeRange
	}
	if c.Change24hRange <= 0 {
		c.Change24hRange = d.Change24hRange
	}
	if c.MaxTrades <= 0 {
		c.MaxTrades = d.MaxTrades
	}
	if c.RecentTrades <= 0 {
		c.RecentTrades = d.RecentTrades
	}
	if c.BaseNotionalUSD <= 0 {
		c.BaseNotionalUSD = d.BaseNotionalUSD
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.MinQuality <= 0 {
		c.MinQuality = d.MinQuality
	}
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithRand replaces the random source (tests use a fixed seed).
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// WithNotifier registers a callback invoked after every settlement.
func WithNotifier(n ports.TradeNotifier) Option {
	return func(s *Simulator) { s.notifier = n }
}

// WithMetrics publishes prices on every tick and counts settlements.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

type pendingTrade struct {
	timer  *time.Timer
	profit float64
}

// Simulator owns the price state, trade history and realized-profit accumulator.
// All methods are safe for concurrent use.
type Simulator struct {
	cfg      Config
	notifier ports.TradeNotifier
	metrics  *observability.Metrics

	mu       sync.Mutex
	rng      *rand.Rand
	volatile float64
	stable   float64
	trades   []domain.Trade // más antiguo primero, como mucho cfg.MaxTrades
	pending  map[string]pendingTrade
	realized decimal.Decimal
	closed   bool
}

// New creates a simulator at the configured initial prices. Prices only move
// when Tick is called, usually from Run.
func New(cfg Config, opts ...Option) *Simulator {
	cfg.setDefaults()
	s := &Simulator{
		cfg:      cfg,
		volatile: cfg.InitialVolatilePrice,
		stable:   cfg.InitialStablePrice,
		pending:  make(map[string]pendingTrade),
		realized: decimal.Zero,
	}
	for _, o := range opts {
		o(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x4b525751))
	}
	s.metrics.SetPrices(s.volatile, s.stable)
	return s
}

// Config returns the effective configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Run ticks prices every TickInterval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	slog.Info("market: price loop started", "pair", s.cfg.Pair, "interval", s.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("market: price loop stopped")
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick applies one random move to each price. The stable asset is kept inside
// [StableFloor, StableCeil]; the volatile one is not clamped.
func (s *Simulator) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volatile *= 1 + (s.rng.Float64()-0.5)*s.cfg.VolatileBand
	s.stable = math.Max(s.cfg.StableFloor,
		math.Min(s.cfg.StableCeil, s.stable*(1+(s.rng.Float64()-0.5)*s.cfg.StableBand)))
	s.metrics.SetPrices(s.volatile, s.stable)

	slog.Debug("market: tick",
		"volatile", fmt.Sprintf("%.6f", s.volatile),
		"stable", fmt.Sprintf("%.6f", s.stable),
	)
}

// Snapshot returns current prices. Volume and 24h change are re-drawn on every call.
func (s *Simulator) Snapshot() domain.PriceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.PriceSnapshot{
		VolatilePrice:  s.volatile,
		StablePrice:    s.stable,
		Timestamp:      time.Now().UTC(),
		Volume24h:      s.cfg.VolumeBase + s.rng.Float64()*s.cfg.VolumeRange,
		PriceChange24h: (s.rng.Float64() - 0.5) * s.cfg.Change24hRange,
	}
}

// Arbitrage draws a fresh spread in [SpreadMinPct, SpreadMaxPct). It does not
// look at the two prices beyond formatting the recommendation.
func (s *Simulator) Arbitrage() domain.ArbitrageOpportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arbitrageLocked()
}

func (s *Simulator) arbitrageLocked() domain.ArbitrageOpportunity {
	spread := s.cfg.SpreadMinPct + s.rng.Float64()*(s.cfg.SpreadMaxPct-s.cfg.SpreadMinPct)
	opp := domain.ArbitrageOpportunity{
		Exists:         spread > s.cfg.OpportunityPct,
		ProfitPct:      spread,
		Recommendation: "No arbitrage opportunity detected",
	}
	if opp.Exists {
		base, quote := s.assets()
		opp.Recommendation = fmt.Sprintf("BUY %s at $%.6f, SELL for %s", base, s.volatile, quote)
	}
	return opp
}

// assets splits "KRWQ-FRAX" into its volatile and stable legs.
func (s *Simulator) assets() (string, string) {
	base, quote, ok := strings.Cut(s.cfg.Pair, "-")
	if !ok {
		return s.cfg.Pair, s.cfg.Pair
	}
	return base, quote
}

// CreateTrade records a PENDING trade and schedules its settlement after
// SettleDelay. The caller never waits for settlement. After Close the trade is
// recorded as FAILED right away.
func (s *Simulator) CreateTrade(side domain.TradeSide, notionalUSD, expectedProfitUSD float64) domain.Trade {
	s.mu.Lock()
	t := s.createLocked(side, notionalUSD, expectedProfitUSD)
	s.mu.Unlock()

	slog.Info("market: trade created",
		"id", t.ID,
		"side", t.Side,
		"amount", fmt.Sprintf("$%.2f", t.NotionalUSD),
		"price", fmt.Sprintf("%.6f", t.PriceAtCreation),
		"expectedProfit", fmt.Sprintf("$%.2f", t.ExpectedProfitUSD),
		"status", t.Status,
	)
	return t
}

func (s *Simulator) createLocked(side domain.TradeSide, notionalUSD, expectedProfitUSD float64) domain.Trade {
	price := s.volatile
	if side == domain.SideSell {
		price = s.stable
	}
	t := domain.Trade{
		ID:                domain.NewID("trade"),
		Side:              side,
		Pair:              s.cfg.Pair,
		NotionalUSD:       notionalUSD,
		PriceAtCreation:   price,
		CreatedAt:         time.Now().UTC(),
		ExpectedProfitUSD: expectedProfitUSD,
		Status:            domain.TradePending,
	}

	if s.closed {
		now := t.CreatedAt
		t.Status = domain.TradeFailed
		t.SettledAt = &now
	} else {
		id := t.ID
		s.pending[id] = pendingTrade{
			timer:  time.AfterFunc(s.cfg.SettleDelay, func() { s.settle(id) }),
			profit: expectedProfitUSD,
		}
	}

	s.trades = append(s.trades, t)
	if over := len(s.trades) - s.cfg.MaxTrades; over > 0 {
		// FIFO: se descartan los más antiguos. Un trade pendiente descartado
		// sigue liquidándose y sumando al acumulado.
		s.trades = append(s.trades[:0:0], s.trades[over:]...)
	}
	return t
}

// SimulateFromIntelligence opens a BUY sized by confidence when the tip passes
// the gate (verified, confidence >= MinConfidence, quality >= MinQuality).
// ok is false when no trade was opened.
func (s *Simulator) SimulateFromIntelligence(verified bool, confidence, quality int) (domain.Trade, bool) {
	if !verified || confidence < s.cfg.MinConfidence || quality < s.cfg.MinQuality {
		slog.Info("market: trade rejected",
			"verified", verified,
			"confidence", confidence,
			"quality", quality,
		)
		return domain.Trade{}, false
	}

	s.mu.Lock()
	position := s.cfg.BaseNotionalUSD * float64(confidence) / 100
	arb := s.arbitrageLocked()
	profit := position * arb.ProfitPct / 100
	t := s.createLocked(domain.SideBuy, position, profit)
	s.mu.Unlock()

	slog.Info("market: trade from intelligence",
		"id", t.ID,
		"position", fmt.Sprintf("$%.2f", position),
		"spread", fmt.Sprintf("%.2f%%", arb.ProfitPct),
		"expectedProfit", fmt.Sprintf("$%.2f", profit),
	)
	return t, true
}

// settle moves a pending trade to EXECUTED and adds its profit to the
// accumulator exactly once.
func (s *Simulator) settle(id string) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)

	now := time.Now().UTC()
	s.realized = s.realized.Add(decimal.NewFromFloat(p.profit))

	var settled domain.Trade
	found := false
	for i := range s.trades {
		if s.trades[i].ID == id {
			s.trades[i].Status = domain.TradeExecuted
			s.trades[i].SettledAt = &now
			settled = s.trades[i]
			found = true
			break
		}
	}
	notifier := s.notifier
	s.mu.Unlock()
	s.metrics.RecordTradeSettled()

	slog.Info("market: trade executed",
		"id", id,
		"profit", fmt.Sprintf("$%.2f", p.profit),
		"inHistory", found,
	)

	if notifier == nil || !found {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := notifier.TradeSettled(ctx, settled); err != nil {
		slog.Warn("market: trade notification failed", "id", id, "err", err)
	}
}

// Stats is recomputed from the current history on every call.
func (s *Simulator) Stats() domain.TradingStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.TradingStats{
		TotalTrades:       len(s.trades),
		RealizedProfitUSD: s.realized,
	}
	wins := 0
	for _, t := range s.trades {
		switch t.Status {
		case domain.TradeExecuted:
			st.ExecutedTrades++
			if t.ExpectedProfitUSD > 0 {
				wins++
			}
		case domain.TradePending:
			st.PendingTrades++
		case domain.TradeFailed:
			st.FailedTrades++
		}
	}
	if st.ExecutedTrades > 0 {
		st.WinRate = float64(wins) / float64(st.ExecutedTrades)
	}

	n := min(s.cfg.RecentTrades, len(s.trades))
	st.RecentTrades = make([]domain.Trade, 0, n)
	for i := len(s.trades) - 1; i >= len(s.trades)-n; i-- {
		st.RecentTrades = append(st.RecentTrades, s.trades[i])
	}
	return st
}

// Close stops every pending settlement and marks those trades FAILED.
// Safe to call more than once.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	now := time.Now().UTC()
	failed := 0
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
		for i := range s.trades {
			if s.trades[i].ID == id {
				s.trades[i].Status = domain.TradeFailed
				s.trades[i].SettledAt = &now
				break
			}
		}
		failed++
	}
	slog.Info("market: simulator closed", "pendingFailed", failed)
}
