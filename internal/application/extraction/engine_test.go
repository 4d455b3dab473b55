package extraction

import (
	"fmt"
	"strings"
	"testing"

	"github.com/alejandrodnm/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fourStageOutput imita la salida real del pipeline: un bloque por etapa,
// con la etapa de comisión repitiendo la verificación.
const fourStageOutput = "Intel check complete.\n" +
	"```json\n" +
	`{"verified": false, "confidence": 40, "evidence": "Only a rumor so far", "sources": [], "recommendation": "IGNORE"}` + "\n" +
	"```\n" +
	"Strategy:\n" +
	"```json\n" +
	`{"strategy": "BUY_KRWQ", "expected_profit_pct": 2.5, "reasoning": "Payment adoption", "urgency": "immediate", "position_size": "25%"}` + "\n" +
	"```\n" +
	"```json\n" +
	`{"risk_level": "LOW", "risk_factors": ["liquidity", "timing"], "recommended_position_size": "10%", "proceed_with_trade": true, "risk_explanation": "Deep pools"}` + "\n" +
	"```\n" +
	"After re-checking sources the verification is updated:\n" +
	"```json\n" +
	`{"verified": true, "confidence": 85, "evidence": "Official blog post", "sources": ["https://news.samsung.com"], "recommendation": "TRADE"}` + "\n" +
	"```\n" +
	"```json\n" +
	`{"commission_pct": 7.5, "commission_reasoning": "Base 5% + 2.5% confidence bonus", "estimated_payout_usd": 125.5, "payout_timing": "immediate", "tip_quality_score": 88}` + "\n" +
	"```\n"

func TestExtract_FullPipelineOutput(t *testing.T) {
	ev := Extract(fourStageOutput)

	assert.True(t, ev.Verified)
	assert.Equal(t, 85, ev.Confidence)
	assert.Equal(t, domain.StrategyBuy, ev.Strategy)
	assert.Equal(t, domain.RiskLow, ev.RiskLevel)
	assert.InDelta(t, 7.5, ev.CommissionPct, 1e-9)
	assert.Equal(t, 88, ev.QualityScore)

	assert.Equal(t, "Official blog post", ev.Verification.Evidence)
	assert.Equal(t, []string{"https://news.samsung.com"}, ev.Verification.Sources)
	assert.Equal(t, "TRADE", ev.Verification.Recommendation)
	assert.InDelta(t, 2.5, ev.Plan.ExpectedProfitPct, 1e-9)
	assert.Equal(t, "25%", ev.Plan.PositionSize)
	assert.Equal(t, []string{"liquidity", "timing"}, ev.Risk.RiskFactors)
	assert.True(t, ev.Risk.ProceedWithTrade)
	assert.Equal(t, "immediate", ev.Commission.PayoutTiming)
	assert.Equal(t, 88, ev.Commission.TipQualityScore)
}

func TestExtract_LastOccurrenceWins(t *testing.T) {
	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d_occurrences", n), func(t *testing.T) {
			var sb strings.Builder
			for i := 0; i < n; i++ {
				// alternate verified, confidence increases: the last one must win
				fmt.Fprintf(&sb, "stage %d: {\"verified\": %t, \"confidence\": %d}\n", i, i%2 == 0, 10+i*15)
			}
			ev := Extract(sb.String())
			assert.Equal(t, (n-1)%2 == 0, ev.Verified)
			assert.Equal(t, 10+(n-1)*15, ev.Confidence)
		})
	}
}

func TestExtract_FirstOccurrenceForSingleStageFields(t *testing.T) {
	text := `{"strategy": "SELL_KRWQ", "risk_level": "HIGH"} later {"strategy": "BUY_KRWQ", "risk_level": "LOW"}`
	ev := Extract(text)
	assert.Equal(t, domain.StrategySell, ev.Strategy)
	assert.Equal(t, domain.RiskHigh, ev.RiskLevel)
}

func TestExtract_Defaults(t *testing.T) {
	for _, text := range []string{"", "The pipeline produced no structured output.", "{}", "```json\n```"} {
		ev := Extract(text)
		assert.False(t, ev.Verified)
		assert.Equal(t, 0, ev.Confidence)
		assert.Equal(t, domain.StrategyNoAction, ev.Strategy)
		assert.Equal(t, domain.RiskUnknown, ev.RiskLevel)
		assert.Equal(t, 0.0, ev.CommissionPct)
		assert.Equal(t, 0, ev.QualityScore)

		assert.Equal(t, DefaultEvidence, ev.Verification.Evidence)
		assert.Empty(t, ev.Verification.Sources)
		assert.Equal(t, DefaultRiskFactors, ev.Risk.RiskFactors)
		assert.Equal(t, DefaultPayoutTiming, ev.Commission.PayoutTiming)
	}
}

func TestExtract_QualityDefaultsToConfidenceWhenVerified(t *testing.T) {
	ev := Extract(`{"verified": true, "confidence": 72}`)
	assert.Equal(t, 72, ev.QualityScore)

	ev = Extract(`{"verified": false, "confidence": 72}`)
	assert.Equal(t, 0, ev.QualityScore)
}

func TestExtract_CommissionClamped(t *testing.T) {
	assert.InDelta(t, 15.0, Extract(`{"commission_pct": 42}`).CommissionPct, 1e-9)
	assert.InDelta(t, 0.0, Extract(`{"commission_pct": -3}`).CommissionPct, 1e-9)
	assert.InDelta(t, 10.0, New(10).Extract(`{"commission_pct": 12.5}`).CommissionPct, 1e-9)
}

func TestExtract_PercentFieldsClamped(t *testing.T) {
	ev := Extract(`{"verified": true, "confidence": 140, "tip_quality_score": 250}`)
	assert.Equal(t, 100, ev.Confidence)
	assert.Equal(t, 100, ev.QualityScore)

	ev = Extract(`{"confidence": 85.9}`)
	assert.Equal(t, 85, ev.Confidence)
}

func TestExtract_NegativePercentsAreIgnored(t *testing.T) {
	ev := Extract(`{"verified": true, "confidence": 70} {"confidence": -5, "tip_quality_score": -5}`)
	assert.Equal(t, 70, ev.Confidence)
	// quality ignorada: cae a la confianza del tip verificado
	assert.Equal(t, 70, ev.QualityScore)
}

func TestExtract_NullValuesAreIgnored(t *testing.T) {
	ev := Extract(`{"verified": true, "confidence": 85, "evidence": "Official blog post"}` + "\n" +
		`{"verified": null, "confidence": null, "evidence": null, "sources": null, "tip_quality_score": null}`)
	assert.True(t, ev.Verified)
	assert.Equal(t, 85, ev.Confidence)
	assert.Equal(t, 85, ev.QualityScore)
	assert.Equal(t, "Official blog post", ev.Verification.Evidence)
	assert.Equal(t, []string{}, ev.Verification.Sources)

	ev = Extract(`{"verified": true, "confidence": 85} {"tip_quality_score": null}`)
	assert.Equal(t, 85, ev.QualityScore)

	ev = Extract(`{"strategy": null, "risk_level": null, "risk_factors": null, "commission_pct": null}`)
	assert.Equal(t, domain.StrategyNoAction, ev.Strategy)
	assert.Equal(t, domain.RiskUnknown, ev.RiskLevel)
	assert.Equal(t, DefaultRiskFactors, ev.Risk.RiskFactors)
	assert.InDelta(t, 0.0, ev.CommissionPct, 1e-9)
}

func TestExtract_BrokenFragmentFallsBackToLenientScan(t *testing.T) {
	// trailing comma + missing closing brace: not valid JSON
	text := "```json\n{\"verified\": true, \"confidence\": 91, \"evidence\": \"ok\",\n```\n" +
		`{"strategy": "BUY_KRWQ"}`
	ev := Extract(text)
	assert.True(t, ev.Verified)
	assert.Equal(t, 91, ev.Confidence)
	assert.Equal(t, "ok", ev.Verification.Evidence)
	assert.Equal(t, domain.StrategyBuy, ev.Strategy)
}

func TestExtract_UncoercibleValuesAreIgnored(t *testing.T) {
	text := `{"confidence": 60} {"confidence": "very high"} {"risk_level": "SEVERE"} {"risk_level": "medium"}`
	ev := Extract(text)
	// "very high" is not a number: the last usable value is 60
	assert.Equal(t, 60, ev.Confidence)
	assert.Equal(t, domain.RiskMedium, ev.RiskLevel)
}

func TestExtract_NumericStringsAccepted(t *testing.T) {
	ev := Extract(`{"verified": "true", "confidence": "77%", "commission_pct": "6.5"}`)
	assert.True(t, ev.Verified)
	assert.Equal(t, 77, ev.Confidence)
	assert.InDelta(t, 6.5, ev.CommissionPct, 1e-9)
}

func TestExtract_NestedAndDuplicateKeys(t *testing.T) {
	text := `{"verification_result": {"verified": false, "confidence": 30}, "verified": true, "confidence": 66}`
	ev := Extract(text)
	assert.True(t, ev.Verified)
	assert.Equal(t, 66, ev.Confidence)
}

func TestExtract_BracesInsideStrings(t *testing.T) {
	text := `{"evidence": "tweet said {verified: false}", "verified": true, "confidence": 80}`
	ev := Extract(text)
	assert.True(t, ev.Verified)
	assert.Equal(t, "tweet said {verified: false}", ev.Verification.Evidence)
}

func TestExtract_Deterministic(t *testing.T) {
	first := Extract(fourStageOutput)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Extract(fourStageOutput))
	}
}

func TestExtract_SamsungScenario(t *testing.T) {
	text := "Tip: Samsung Pay integrates KRWQ - official announcement\n" +
		`{"verified": false, "confidence": 20, "evidence": "no coverage yet"}` + "\n" +
		`{"strategy": "BUY_KRWQ"}` + "\n" +
		`{"verified": true, "confidence": 85, "evidence": "official announcement found"}`
	ev := Extract(text)
	assert.True(t, ev.Verified)
	assert.Equal(t, 85, ev.Confidence)
	assert.Equal(t, 85, ev.QualityScore)
}

func TestLocateFragments(t *testing.T) {
	text := "pre {\"a\": 1} mid ```json\n{\"b\": 2}\n``` post {\"c\": {\"d\": 3}} tail {\"open\": "
	frags := locateFragments(text)
	require.Len(t, frags, 4)
	assert.Equal(t, `{"a": 1}`, frags[0].body)
	assert.Equal(t, `{"b": 2}`, frags[1].body)
	assert.Equal(t, `{"c": {"d": 3}}`, frags[2].body)
	assert.Equal(t, `{"open": `, frags[3].body)
}

func TestScanLenient(t *testing.T) {
	occs := scanLenient(`{"verified": true, "sources": ["x", "y"], "note": "a \"quoted\" word", "confidence": 85,`)
	keys := make([]string, 0, len(occs))
	for _, o := range occs {
		keys = append(keys, o.key)
	}
	assert.Equal(t, []string{"verified", "sources", "note", "confidence"}, keys)
	assert.Equal(t, "85", occs[3].raw)
	assert.Equal(t, `["x", "y"]`, occs[1].raw)
}
