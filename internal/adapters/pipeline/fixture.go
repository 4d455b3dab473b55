package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// credibleKeywords marcan un tip como noticia institucional creíble.
var credibleKeywords = []string{
	"partnership",
	"samsung",
	"major exchange",
	"institutional",
	"government adoption",
	"official announcement",
	"integration",
	"breaking news",
	"collaboration",
	"listing",
	"regulation",
	"license",
}

// Fixture is an offline ports.Pipeline. Credible-sounding tips are verified
// with high confidence and everything else is rejected. Its output mirrors
// the real pipeline: the verification is restated by the last stage.
type Fixture struct{}

// NewFixture returns the offline pipeline.
func NewFixture() *Fixture {
	return &Fixture{}
}

// Ask never fails unless ctx is already done.
func (f *Fixture) Ask(ctx context.Context, tip string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("pipeline.Fixture: %w", err)
	}

	hits := matchedKeywords(tip)
	verified := len(hits) > 0
	confidence := 20
	if verified {
		// 80 base + 5 por keyword extra, hasta 95
		confidence = min(80+5*(len(hits)-1), 95)
	}

	var b strings.Builder
	write := func(name string, v any) {
		body, _ := json.MarshalIndent(v, "", "  ")
		fmt.Fprintf(&b, "## %s\n```json\n%s\n```\n\n", name, body)
	}

	// Primera lectura: siempre prudente. La última etapa la corrige.
	write("intel_verification", map[string]any{
		"verified":       false,
		"confidence":     confidence / 2,
		"evidence":       "Initial scan found no independent coverage yet",
		"sources":        []string{},
		"recommendation": "IGNORE",
	})

	if !verified {
		write("trading_strategy", map[string]any{
			"strategy":            "NO_ACTION",
			"expected_profit_pct": 0,
			"reasoning":           "Unverified claim, no edge",
			"urgency":             "skip",
			"position_size":       "0%",
		})
		write("risk_assessment", map[string]any{
			"risk_level":                "HIGH",
			"risk_factors":              []string{"source credibility"},
			"recommended_position_size": "0%",
			"proceed_with_trade":        false,
			"risk_explanation":          "Claim could not be verified",
		})
		write("commission_calculator", map[string]any{
			"verified":             false,
			"confidence":           confidence,
			"commission_pct":       0,
			"commission_reasoning": "No commission for unverified tips",
			"estimated_payout_usd": 0,
			"payout_timing":        "after_trade_execution",
			"tip_quality_score":    10,
		})
		return b.String(), nil
	}

	profit := 1.5 + 0.25*float64(len(hits))
	commission := min(5+float64(max(confidence-70, 0))/10+2, 15)

	write("trading_strategy", map[string]any{
		"strategy":            "BUY_KRWQ",
		"expected_profit_pct": profit,
		"reasoning":           "Adoption news tends to widen the KRWQ-FRAX spread",
		"urgency":             "immediate",
		"position_size":       "25%",
	})
	write("risk_assessment", map[string]any{
		"risk_level":                "LOW",
		"risk_factors":              []string{"liquidity", "timing"},
		"recommended_position_size": "10%",
		"proceed_with_trade":        true,
		"risk_explanation":          "Credible catalyst, deep enough pools",
	})
	write("commission_calculator", map[string]any{
		"verified":             true,
		"confidence":           confidence,
		"evidence":             "Matches credible catalyst: " + strings.Join(hits, ", "),
		"commission_pct":       commission,
		"commission_reasoning": fmt.Sprintf("Base 5%% + %.1f%% confidence bonus + 2%% low risk", commission-7),
		"estimated_payout_usd": 1000 * profit / 100 * commission / 100,
		"payout_timing":        "after_trade_execution",
		"tip_quality_score":    confidence,
	})
	return b.String(), nil
}

func matchedKeywords(tip string) []string {
	lower := strings.ToLower(tip)
	var hits []string
	for _, k := range credibleKeywords {
		if strings.Contains(lower, k) {
			hits = append(hits, k)
		}
	}
	return hits
}
