// Package currency formats integer minor-unit amounts. Balances are
// stored as satang and only converted to floats for display.
package currency

import (
	"fmt"
	"math"
)

// FormatBaht renders satang as baht with two decimals, e.g. "12.50 บาท".
func FormatBaht(cents int64) string {
	return fmt.Sprintf("%.2f บาท", float64(cents)/100.0)
}

// ToCents converts a baht amount entered by an admin into satang,
// rounding half away from zero.
func ToCents(baht float64) int64 {
	return int64(math.Round(baht * 100))
}
