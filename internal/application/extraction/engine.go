// Package extraction turns the raw, multi-stage pipeline text into a single
// deterministic TipEvaluation.
package extraction

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/alejandrodnm/sentinel/internal/domain"
)

// rule decides which occurrence of a repeated key wins.
type rule int

const (
	firstMatch rule = iota
	lastMatch
)

// resolution is the per-key policy. Keys restated by later stages take the last
// occurrence; keys that belong to a single stage take the first.
var resolution = map[string]rule{
	// verificación (puede repetirse en etapas posteriores)
	"verified":       lastMatch,
	"confidence":     lastMatch,
	"evidence":       lastMatch,
	"sources":        lastMatch,
	"recommendation": lastMatch,

	// estrategia
	"strategy":            firstMatch,
	"expected_profit_pct": firstMatch,
	"reasoning":           firstMatch,
	"urgency":             firstMatch,
	"position_size":       firstMatch,

	// riesgo
	"risk_level":                firstMatch,
	"risk_factors":              firstMatch,
	"recommended_position_size": firstMatch,
	"proceed_with_trade":        firstMatch,
	"risk_explanation":          firstMatch,

	// comisión
	"commission_pct":       firstMatch,
	"commission_reasoning": firstMatch,
	"estimated_payout_usd": firstMatch,
	"payout_timing":        firstMatch,
	"tip_quality_score":    firstMatch,
}

// Canned defaults for fields the pipeline did not produce.
const (
	DefaultEvidence            = "No verification evidence reported"
	DefaultRecommendation      = "IGNORE"
	DefaultReasoning           = "No strategy reasoning reported"
	DefaultUrgency             = "skip"
	DefaultPositionSize        = "0%"
	DefaultRiskExplanation     = "No risk assessment reported"
	DefaultCommissionReasoning = "No commission calculation reported"
	DefaultPayoutTiming        = "after_trade_execution"

	// DefaultMaxCommissionPct caps commission_pct when no policy is given.
	DefaultMaxCommissionPct = 15.0
)

// DefaultRiskFactors is returned when no risk_factors list could be read.
var DefaultRiskFactors = []string{"risk assessment unavailable"}

// Engine is stateless; the same text always yields the same evaluation.
type Engine struct {
	maxCommissionPct float64
}

// New returns an Engine that clamps commission into [0, maxCommissionPct].
// A non-positive cap falls back to DefaultMaxCommissionPct.
func New(maxCommissionPct float64) *Engine {
	if maxCommissionPct <= 0 {
		maxCommissionPct = DefaultMaxCommissionPct
	}
	return &Engine{maxCommissionPct: maxCommissionPct}
}

// Extract runs the default engine over text.
func Extract(text string) domain.TipEvaluation {
	return New(DefaultMaxCommissionPct).Extract(text)
}

// Extract never fails: every field that is missing or malformed falls back to
// its documented default.
func (e *Engine) Extract(text string) domain.TipEvaluation {
	occs := scanOccurrences(text)

	verified, _ := resolve(occs, "verified", asBool)
	confidence, _ := resolve(occs, "confidence", asPercentInt)

	v := domain.VerificationReport{
		Verified:       verified,
		Confidence:     confidence,
		Evidence:       pick(occs, "evidence", asString, DefaultEvidence),
		Sources:        pick(occs, "sources", asStringList, []string{}),
		Recommendation: pick(occs, "recommendation", asString, DefaultRecommendation),
	}

	p := domain.StrategyPlan{
		Strategy:          pick(occs, "strategy", asStrategy, domain.StrategyNoAction),
		ExpectedProfitPct: pick(occs, "expected_profit_pct", asFloat, 0),
		Reasoning:         pick(occs, "reasoning", asString, DefaultReasoning),
		Urgency:           pick(occs, "urgency", asString, DefaultUrgency),
		PositionSize:      pick(occs, "position_size", asSizeString, DefaultPositionSize),
	}

	r := domain.RiskReport{
		RiskLevel:               pick(occs, "risk_level", asRiskLevel, domain.RiskUnknown),
		RiskFactors:             pick(occs, "risk_factors", asStringList, append([]string(nil), DefaultRiskFactors...)),
		RecommendedPositionSize: pick(occs, "recommended_position_size", asSizeString, DefaultPositionSize),
		ProceedWithTrade:        pick(occs, "proceed_with_trade", asBool, false),
		RiskExplanation:         pick(occs, "risk_explanation", asString, DefaultRiskExplanation),
	}

	commission, _ := resolve(occs, "commission_pct", asFloat)
	commission = clamp(commission, 0, e.maxCommissionPct)

	quality, ok := resolve(occs, "tip_quality_score", asPercentInt)
	if !ok {
		// Sin score de calidad: se usa la confianza si el tip fue verificado.
		quality = 0
		if verified {
			quality = confidence
		}
	}

	c := domain.CommissionReport{
		CommissionPct:       commission,
		CommissionReasoning: pick(occs, "commission_reasoning", asString, DefaultCommissionReasoning),
		EstimatedPayoutUSD:  pick(occs, "estimated_payout_usd", asFloat, 0),
		PayoutTiming:        pick(occs, "payout_timing", asString, DefaultPayoutTiming),
		TipQualityScore:     quality,
	}

	return domain.TipEvaluation{
		Verified:      verified,
		Confidence:    confidence,
		Strategy:      p.Strategy,
		RiskLevel:     r.RiskLevel,
		CommissionPct: commission,
		QualityScore:  quality,
		Verification:  v,
		Plan:          p,
		Risk:          r,
		Commission:    c,
	}
}

// resolve applies the key's rule to the occurrences whose value coerces.
// Occurrences that are null or do not coerce are ignored, as if they were absent.
func resolve[T any](occs []occurrence, key string, coerce func(string) (T, bool)) (T, bool) {
	var out T
	found := false
	r := resolution[key]
	for _, o := range occs {
		if o.key != key || isNull(o.raw) {
			continue
		}
		v, ok := coerce(o.raw)
		if !ok {
			continue
		}
		if r == firstMatch {
			return v, true
		}
		out, found = v, true
	}
	return out, found
}

// pick is resolve with a fallback value.
func pick[T any](occs []occurrence, key string, coerce func(string) (T, bool), def T) T {
	if v, ok := resolve(occs, key, coerce); ok {
		return v
	}
	return def
}

// --- coerciones ---

// isNull: json.Unmarshal acepta null sin error para cualquier destino.
func isNull(raw string) bool {
	return strings.TrimSpace(raw) == "null"
}

func asBool(raw string) (bool, bool) {
	var b bool
	if err := json.Unmarshal([]byte(raw), &b); err == nil {
		return b, true
	}
	if s, ok := asString(raw); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// asFloat accepts JSON numbers and numeric strings such as "7.5" or "7.5%".
func asFloat(raw string) (float64, bool) {
	var f float64
	if err := json.Unmarshal([]byte(raw), &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	s, ok := asString(raw)
	if !ok {
		return 0, false
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asPercentInt truncates to an integer in [0, 100]. Negative values do not
// coerce.
func asPercentInt(raw string) (int, bool) {
	f, ok := asFloat(raw)
	if !ok || f < 0 {
		return 0, false
	}
	return int(clamp(math.Trunc(f), 0, 100)), true
}

func asString(raw string) (string, bool) {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", false
	}
	return s, true
}

// asSizeString accepts "25%" as well as a bare number (rendered as "25%").
func asSizeString(raw string) (string, bool) {
	if s, ok := asString(raw); ok {
		return s, true
	}
	var f float64
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64) + "%", true
}

// asStringList accepts an array of scalars or a single string.
func asStringList(raw string) ([]string, bool) {
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		if s, ok := asString(raw); ok {
			return []string{s}, true
		}
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(v))
		}
	}
	return out, true
}

func asStrategy(raw string) (domain.Strategy, bool) {
	s, ok := asString(raw)
	if !ok {
		return "", false
	}
	return domain.ParseStrategy(s)
}

func asRiskLevel(raw string) (domain.RiskLevel, bool) {
	s, ok := asString(raw)
	if !ok {
		return "", false
	}
	return domain.ParseRiskLevel(s)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
