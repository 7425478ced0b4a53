// Package format renders durations, prices and currency amounts for humans.
package format

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/unitools/pkg/clock"
)

// ReadableDuration renders seconds as "42s", "3m7s" or "2h0m5s".
func ReadableDuration(seconds int64) string {
	return clock.FormatSeconds(seconds)
}

// FormatPrice removes trailing zeros after the decimal point of a decimal
// string while keeping zeros of the integer part. atMost >= 0 truncates the
// fraction to that many digits; a negative atMost keeps every digit.
// Zeros are trimmed before truncating, so a truncated fraction may still end
// in zeros ("12.001" at 2 digits is "12.00").
func FormatPrice(s string, atMost int) string {
	intPart, fracPart, ok := strings.Cut(s, ".")
	if !ok {
		return s
	}

	fracPart = strings.TrimRight(fracPart, "0")
	if atMost >= 0 && len(fracPart) > atMost {
		fracPart = fracPart[:atMost]
	}
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

type unit struct {
	threshold float64
	divisor   float64
	suffix    string
}

var (
	westernUnits = []unit{
		{1e12, 1e12, " T"},
		{1e9, 1e9, " B"},
		{1e6, 1e6, " M"},
		{1e3, 1e3, " K"},
	}

	chineseUnits = []unit{
		{1e12, 1e12, " 万亿"},
		{1e8, 1e8, " 亿"},
		{1e4, 1e4, " 万"},
	}
)

// ReadableCurrency renders amount with two decimals and a T/B/M/K suffix.
func ReadableCurrency(amount float64) string {
	return readable(amount, westernUnits)
}

// ReadableCurrencyCN renders amount with two decimals and a 万亿/亿/万 suffix.
func ReadableCurrencyCN(amount float64) string {
	return readable(amount, chineseUnits)
}

// readable formats with %.2f on the float64 value. Exact binary ties round
// half to even ("1.125" gives "1.12"), but decimal ties that float64 cannot
// represent exactly (1.005) round by their binary value instead.
func readable(amount float64, units []unit) string {
	for _, u := range units {
		if amount >= u.threshold {
			return fmt.Sprintf("%.2f%s", amount/u.divisor, u.suffix)
		}
	}
	return fmt.Sprintf("%.2f", amount)
}
