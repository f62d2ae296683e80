package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatBRL renders a monetary amount in the Brazilian locale: "R$ 1.234,56".
func FormatBRL(v float64) string {
	negative := v < 0
	cents := int64(math.Round(math.Abs(v) * 100))

	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)

	out := fmt.Sprintf("R$ %s,%02d", strings.Join(groups, "."), frac)
	if negative {
		return "-" + out
	}
	return out
}

// FormatNumber renders a number with a decimal comma and no trailing
// zeros: 10 -> "10", 12.5 -> "12,5".
func FormatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return strings.ReplaceAll(s, ".", ",")
}
