package provider

// modelRate holds per-million-token USD prices.
type modelRate struct {
	inputPerM  float64
	outputPerM float64
}

// Pricing as of Jan 2026. Unknown models fall back to the flash rate so
// the ledger never records a zero cost for a real call.
var modelRates = map[string]modelRate{
	"gemini-2.0-flash":      {inputPerM: 0.075, outputPerM: 0.30},
	"gemini-2.0-flash-lite": {inputPerM: 0.0375, outputPerM: 0.15},
	"gemini-1.5-pro":        {inputPerM: 1.25, outputPerM: 5.00},
	"gemini-1.5-flash":      {inputPerM: 0.075, outputPerM: 0.30},
}

var defaultRate = modelRate{inputPerM: 0.075, outputPerM: 0.30}

// EstimateCost returns the estimated USD cost of one call.
func EstimateCost(model string, tokensIn, tokensOut int64) float64 {
	rate, ok := modelRates[model]
	if !ok {
		rate = defaultRate
	}
	return float64(tokensIn)*rate.inputPerM/1_000_000 +
		float64(tokensOut)*rate.outputPerM/1_000_000
}
