package chunks

import (
	"math"
	"unicode/utf8"
)

// TotalBaseUnits converts a document price in USD to token base units,
// truncating sub-unit remainders.
func TotalBaseUnits(priceUSD float64, decimals uint8) uint64 {
	if priceUSD <= 0 {
		return 0
	}
	scaled := priceUSD * math.Pow10(int(decimals))
	if scaled < 0 || math.IsNaN(scaled) || math.IsInf(scaled, 0) {
		return 0
	}
	return uint64(math.Floor(scaled))
}

// AllocatePrices distributes totalBase across chunks proportionally to their
// character counts. Each share is floored; the sub-unit remainder is not
// redistributed, so the sum never exceeds totalBase.
func AllocatePrices(contents []string, totalBase uint64) []uint64 {
	prices := make([]uint64, len(contents))
	var totalChars uint64
	lens := make([]uint64, len(contents))
	for i, c := range contents {
		lens[i] = uint64(utf8.RuneCountInString(c))
		totalChars += lens[i]
	}
	if totalChars == 0 || totalBase == 0 {
		return prices
	}
	for i := range contents {
		prices[i] = lens[i] * totalBase / totalChars
	}
	return prices
}
