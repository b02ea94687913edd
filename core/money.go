package core

import "github.com/shopspring/decimal"

func init() {
	// amounts travel as JSON numbers, like every other numeric field of the API
	decimal.MarshalJSONWithoutQuotes = true
}

// RoundPercent returns part/whole as a percentage rounded to 2 decimals (0 if whole is 0).
func RoundPercent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	pct, _ := decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2).
		Float64()
	return pct
}
