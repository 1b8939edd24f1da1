package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAED renders an amount the way receipts and messages show it.
// Example: 1234.5 -> "1,234.50 AED"
func FormatAED(amount decimal.Decimal) string {
	return FormatAmount(amount) + " AED"
}

// FormatAmount formats with two decimals and thousands separators.
func FormatAmount(amount decimal.Decimal) string {
	formatted := amount.StringFixed(2)

	sign := ""
	if strings.HasPrefix(formatted, "-") {
		sign = "-"
		formatted = formatted[1:]
	}

	parts := strings.SplitN(formatted, ".", 2)
	integerPart := parts[0]
	decimalPart := parts[1]

	var result []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		result = append([]string{integerPart[start:i]}, result...)
	}

	return sign + strings.Join(result, ",") + "." + decimalPart
}

// ToMinorUnits converts a currency amount to fils (1 AED = 100 fils).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
