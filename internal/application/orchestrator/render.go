package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alejandrodnm/sentinel/internal/domain"
)

// stage names the block headings; the keys inside each block are the ones the
// stage prompts ask for.
var stages = []string{
	"Intel verification",
	"Trading strategy",
	"Risk assessment",
	"Commission",
}

// Render builds the canonical response: a short summary followed by one fenced
// json block per stage, always carrying every field of the extracted
// evaluation (defaults included).
func Render(ev domain.TipEvaluation) string {
	var b strings.Builder

	verdict := "NOT VERIFIED"
	if ev.Verified {
		verdict = "VERIFIED"
	}
	fmt.Fprintf(&b, "KRWQ Sentinel: tip %s (confidence %d%%, quality %d)\n",
		verdict, ev.Confidence, ev.QualityScore)
	fmt.Fprintf(&b, "Strategy %s, risk %s, commission %.2f%%\n",
		ev.Strategy, ev.RiskLevel, ev.CommissionPct)

	blocks := []any{ev.Verification, ev.Plan, ev.Risk, ev.Commission}
	for i, v := range blocks {
		body, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			// los reports son structs planos: no debería ocurrir
			body = []byte("{}")
		}
		fmt.Fprintf(&b, "\n%s:\n```json\n%s\n```\n", stages[i], body)
	}
	return b.String()
}
