package domain

import (
	"strings"
	"time"
)

// Strategy es la acción de trading propuesta por el pipeline.
type Strategy string

const (
	StrategyBuy      Strategy = "BUY"
	StrategySell     Strategy = "SELL"
	StrategyNoAction Strategy = "NO_ACTION"
)

// ParseStrategy normalizes the pipeline's wording ("BUY_KRWQ", "sell", ...).
// ok is false when the value is not a known strategy.
func ParseStrategy(s string) (Strategy, bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case v == "NO_ACTION" || v == "NONE" || v == "HOLD":
		return StrategyNoAction, true
	case v == "BUY" || strings.HasPrefix(v, "BUY_"):
		return StrategyBuy, true
	case v == "SELL" || strings.HasPrefix(v, "SELL_"):
		return StrategySell, true
	}
	return "", false
}

// RiskLevel clasifica el riesgo evaluado por la etapa de riesgo.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
	RiskUnknown  RiskLevel = "UNKNOWN"
)

// ParseRiskLevel is case-insensitive. UNKNOWN is not accepted as an input value.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch r := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return r, true
	}
	return "", false
}

// VerificationReport is the verification stage output.
type VerificationReport struct {
	Verified       bool     `json:"verified"`
	Confidence     int      `json:"confidence"`
	Evidence       string   `json:"evidence"`
	Sources        []string `json:"sources"`
	Recommendation string   `json:"recommendation"`
}

// StrategyPlan is the trading strategy stage output.
type StrategyPlan struct {
	Strategy          Strategy `json:"strategy"`
	ExpectedProfitPct float64  `json:"expected_profit_pct"`
	Reasoning         string   `json:"reasoning"`
	Urgency           string   `json:"urgency"`
	PositionSize      string   `json:"position_size"`
}

// RiskReport is the risk assessment stage output.
type RiskReport struct {
	RiskLevel               RiskLevel `json:"risk_level"`
	RiskFactors             []string  `json:"risk_factors"`
	RecommendedPositionSize string    `json:"recommended_position_size"`
	ProceedWithTrade        bool      `json:"proceed_with_trade"`
	RiskExplanation         string    `json:"risk_explanation"`
}

// CommissionReport is the commission stage output.
type CommissionReport struct {
	CommissionPct       float64 `json:"commission_pct"`
	CommissionReasoning string  `json:"commission_reasoning"`
	EstimatedPayoutUSD  float64 `json:"estimated_payout_usd"`
	PayoutTiming        string  `json:"payout_timing"`
	TipQualityScore     int     `json:"tip_quality_score"`
}

// TipEvaluation is the structured result extracted from one pipeline response.
// The headline fields mirror the values inside the stage reports.
type TipEvaluation struct {
	Verified      bool
	Confidence    int // 0-100
	Strategy      Strategy
	RiskLevel     RiskLevel
	CommissionPct float64 // 0-15
	QualityScore  int     // 0-100

	Verification VerificationReport
	Plan         StrategyPlan
	Risk         RiskReport
	Commission   CommissionReport
}

// TipRecord es una entrada del ledger. Nunca se modifica tras crearse.
type TipRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Tip           string    `json:"tipContent"`
	Timestamp     time.Time `json:"timestamp"`
	Verified      bool      `json:"verified"`
	Confidence    int       `json:"confidence"`
	Strategy      Strategy  `json:"strategy"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	CommissionPct float64   `json:"commissionPct"`
	QualityScore  int       `json:"tipQualityScore"`
}

// NewTipRecord builds a ledger record from an evaluation, truncating the tip to
// TipPreviewRunes characters.
func NewTipRecord(id, userID, tip string, at time.Time, ev TipEvaluation) TipRecord {
	return TipRecord{
		ID:            id,
		UserID:        userID,
		Tip:           TruncateRunes(tip, TipPreviewRunes),
		Timestamp:     at,
		Verified:      ev.Verified,
		Confidence:    ev.Confidence,
		Strategy:      ev.Strategy,
		RiskLevel:     ev.RiskLevel,
		CommissionPct: ev.CommissionPct,
		QualityScore:  ev.QualityScore,
	}
}

// TipPreviewRunes is how much of the submitted tip the ledger keeps.
const TipPreviewRunes = 100

// AnonymousUser is used when a submission carries no user id.
const AnonymousUser = "anonymous"

// TruncateRunes cuts s to at most n characters without splitting a multi-byte rune.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// PipelineRun records one call to the reasoning pipeline, successful or not.
type PipelineRun struct {
	TipID       string
	UserID      string
	Tip         string
	RawResponse string
	Err         string
	StartedAt   time.Time
	Duration    time.Duration
	Verified    bool
	Confidence  int
}
