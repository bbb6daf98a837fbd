package export

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Locale is used for every human-facing number.
var Locale = language.MustParse("nl-BE")

// printer returns a fresh printer; message.Printer is not safe for
// concurrent use.
func printer() *message.Printer {
	return message.NewPrinter(Locale)
}

// FormatInt formats n with Dutch digit grouping, e.g. 1.234.567.
func FormatInt(n int) string {
	return printer().Sprintf("%d", n)
}

// FormatEuro formats an amount rounded to whole euros, e.g. "€ 1.234.567".
func FormatEuro(v float64) string {
	return "€ " + printer().Sprintf("%d", int64(math.Round(v)))
}

// FormatEuroCents formats an amount with two decimals, e.g. "€ 12,50".
func FormatEuroCents(v float64) string {
	return "€ " + printer().Sprintf("%.2f", v)
}

// FormatMillions formats an amount in millions with one decimal,
// e.g. "€ 12,3M".
func FormatMillions(v float64) string {
	return "€ " + printer().Sprintf("%.1f", v/1e6) + "M"
}

// FormatPercent formats a share in [0,1] as a percentage with one decimal.
func FormatPercent(share float64) string {
	return printer().Sprintf("%.1f", share*100) + "%"
}
