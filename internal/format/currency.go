// Package format holds presentation helpers shared by the storefront:
// VND currency rendering and URL slugs.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol is appended to every formatted VND amount.
const CurrencySymbol = "₫"

// VND renders amount in Vietnamese dong, e.g. "1.250.000 ₫".
// The dong has no minor unit, so fractions are rounded away.
func VND(amount decimal.Decimal) string {
	digits := amount.Round(0).Abs().String()

	var b strings.Builder
	if amount.Round(0).IsNegative() {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	b.WriteByte(' ')
	b.WriteString(CurrencySymbol)
	return b.String()
}
