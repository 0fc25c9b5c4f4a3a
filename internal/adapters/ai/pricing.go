package ai

import "github.com/shopspring/decimal"

// modelPricing holds USD cost per 1K tokens for the models this service
// calls. Unknown models price at zero rather than failing the call.
type modelPricing struct {
	InputPer1K  decimal.Decimal
	OutputPer1K decimal.Decimal
}

var pricing = map[string]modelPricing{
	"gpt-4o":           {InputPer1K: decimal.NewFromFloat(0.0025), OutputPer1K: decimal.NewFromFloat(0.01)},
	"gpt-4o-mini":      {InputPer1K: decimal.NewFromFloat(0.00015), OutputPer1K: decimal.NewFromFloat(0.0006)},
	"sonar":            {InputPer1K: decimal.NewFromFloat(0.001), OutputPer1K: decimal.NewFromFloat(0.001)},
	"sonar-pro":        {InputPer1K: decimal.NewFromFloat(0.003), OutputPer1K: decimal.NewFromFloat(0.015)},
	"grok-2-latest":    {InputPer1K: decimal.NewFromFloat(0.002), OutputPer1K: decimal.NewFromFloat(0.01)},
	"gemini-2.0-flash": {InputPer1K: decimal.NewFromFloat(0.0001), OutputPer1K: decimal.NewFromFloat(0.0004)},
	"gemini-1.5-pro":   {InputPer1K: decimal.NewFromFloat(0.0035), OutputPer1K: decimal.NewFromFloat(0.0105)},
}

var oneThousand = decimal.NewFromInt(1000)

// costFor computes the USD cost of a call from its token usage.
func costFor(model string, promptTokens, completionTokens int64) decimal.Decimal {
	p, ok := pricing[model]
	if !ok {
		return decimal.Zero
	}
	in := p.InputPer1K.Mul(decimal.NewFromInt(promptTokens)).Div(oneThousand)
	out := p.OutputPer1K.Mul(decimal.NewFromInt(completionTokens)).Div(oneThousand)
	return in.Add(out)
}
