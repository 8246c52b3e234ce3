package billing

import (
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatPrice renders minor units as a localized amount with the currency
// symbol, e.g. "$ 12.50" for en and 1250 USD. Unknown currencies fall back to USD.
func FormatPrice(tag language.Tag, minor int64, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		unit = currency.USD
	}
	scale, _ := currency.Standard.Rounding(unit)
	amount := float64(minor) / math.Pow10(scale)
	return message.NewPrinter(tag).Sprint(currency.Symbol(unit.Amount(amount)))
}

// IntervalLabel maps provider intervals to a short per-period suffix.
func IntervalLabel(interval string) string {
	switch strings.ToLower(interval) {
	case "day":
		return "/day"
	case "week":
		return "/week"
	case "month":
		return "/month"
	case "year":
		return "/year"
	}
	return ""
}
