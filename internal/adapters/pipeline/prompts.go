package pipeline

import "strings"

// stage es una etapa del pipeline secuencial. OutputKey es el nombre con el
// que las etapas siguientes referencian su salida dentro de las instrucciones.
type stage struct {
	Name        string
	OutputKey   string
	Instruction string
}

// stages runs in order; each one sees every previous output.
var stages = []stage{
	{
		Name:      "intel_verification",
		OutputKey: "verification_result",
		Instruction: `You are the intelligence verification specialist of the KRWQ Sentinel fund.

Tips concern KRWQ (Korean Won token) or FRAX market movements. Decide whether the tip is
TRUE or FALSE and how confident you are (0-100). Partnerships, major exchange listings,
institutional adoption, government programs and official announcements are usually credible
(75-95). Vague hype such as "trust me" or "going to 10x" is FALSE.

Respond with JSON only:
{
  "verified": true,
  "confidence": 85,
  "evidence": "Brief summary of what you found",
  "sources": ["url1", "url2"],
  "recommendation": "TRADE"
}
recommendation is "TRADE" or "IGNORE".`,
	},
	{
		Name:      "trading_strategy",
		OutputKey: "trading_strategy",
		Instruction: `You are the KRWQ-FRAX arbitrage strategist of the KRWQ Sentinel fund.

Verified intelligence: {verification_result}

Estimate the impact on KRWQ-FRAX pricing, whether an arbitrage opportunity exists, the
expected profit percentage and the timing. Only recommend trades above 1% expected profit.

Respond with JSON only:
{
  "strategy": "BUY_KRWQ",
  "expected_profit_pct": 2.5,
  "reasoning": "Brief explanation",
  "urgency": "immediate",
  "position_size": "25%"
}
strategy is BUY_KRWQ, SELL_KRWQ or NO_ACTION; urgency is immediate, monitor or skip.`,
	},
	{
		Name:      "risk_assessment",
		OutputKey: "risk_assessment",
		Instruction: `You are the risk manager of the KRWQ Sentinel fund.

Verification: {verification_result}
Strategy: {trading_strategy}

Rate the overall risk (LOW, MEDIUM, HIGH, CRITICAL), list the risk factors (liquidity,
volatility, timing, source credibility), size the position and decide whether to proceed.
Reject HIGH and CRITICAL trades.

Respond with JSON only:
{
  "risk_level": "LOW",
  "risk_factors": ["factor1", "factor2"],
  "recommended_position_size": "10%",
  "proceed_with_trade": true,
  "risk_explanation": "Brief explanation"
}`,
	},
	{
		Name:      "commission_calculator",
		OutputKey: "commission_calculation",
		Instruction: `You compute the reward of the tip provider for the KRWQ Sentinel fund.

Verification: {verification_result}
Strategy: {trading_strategy}
Risk: {risk_assessment}

Formula: base 5% of expected profit, +1% per 10 points of confidence above 70, +2% for LOW
risk, capped at 15%.

Respond with JSON only:
{
  "commission_pct": 7.5,
  "commission_reasoning": "Base 5% + 2.5% confidence bonus",
  "estimated_payout_usd": 125.50,
  "payout_timing": "after_trade_execution",
  "tip_quality_score": 85
}
payout_timing is "immediate" or "after_trade_execution".`,
	},
}

// render sustituye {output_key} por la salida de la etapa correspondiente.
// Las referencias a etapas que aún no corrieron quedan vacías.
func (s stage) render(outputs map[string]string) string {
	pairs := make([]string, 0, 2*len(stages))
	for _, st := range stages {
		pairs = append(pairs, "{"+st.OutputKey+"}", outputs[st.OutputKey])
	}
	return strings.NewReplacer(pairs...).Replace(s.Instruction)
}
