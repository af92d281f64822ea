package stats

import (
	"strings"

	"github.com/Zuo-Peng/aisx/internal/parse"
)

// Pricing is a model tier price in USD per million tokens.
type Pricing struct {
	Family           string
	InputPerMillion  float64
	OutputPerMillion float64
}

// Approximate list prices. Cache discounts are not modelled.
var modelPricing = []Pricing{
	{Family: "opus", InputPerMillion: 15.0, OutputPerMillion: 75.0},
	{Family: "sonnet", InputPerMillion: 3.0, OutputPerMillion: 15.0},
	{Family: "haiku", InputPerMillion: 0.25, OutputPerMillion: 1.25},
}

// PriceFor finds the tier whose family name appears in model, ignoring
// case. It reports false for unpriced models.
func PriceFor(model string) (Pricing, bool) {
	lower := strings.ToLower(model)
	for _, p := range modelPricing {
		if strings.Contains(lower, p.Family) {
			return p, true
		}
	}
	return Pricing{}, false
}

// EstimateCost sums input and output cost over assistant messages with a
// priced model. The result is nil, not zero, when no message was priced.
func EstimateCost(messages []parse.Message) *float64 {
	total := 0.0
	priced := false
	for _, msg := range messages {
		if msg.Role != parse.RoleAssistant || msg.Usage == nil {
			continue
		}
		in, out := msg.Usage.InputTokens, msg.Usage.OutputTokens
		if in == 0 && out == 0 {
			continue
		}
		p, ok := PriceFor(msg.Model)
		if !ok {
			continue
		}
		priced = true
		total += float64(in) / 1_000_000 * p.InputPerMillion
		total += float64(out) / 1_000_000 * p.OutputPerMillion
	}
	if !priced {
		return nil
	}
	total = roundTo(total, 4)
	return &total
}
