package pivot

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"INR": "₹",
	"KRW": "₩",
	"BRL": "R$",
	"AUD": "A$",
	"CAD": "C$",
	"MXN": "MX$",
	"RUB": "₽",
	"TRY": "₺",
	"ILS": "₪",
	"NGN": "₦",
	"PHP": "₱",
	"VND": "₫",
	"UAH": "₴",
	"ZAR": "R",
}

var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
}

// CurrencyContext controls how absolute values are formatted.
type CurrencyContext struct {
	Code      string
	Symbol    string
	Precision int
}

// CurrencyFor resolves the symbol and precision of a currency code. Unknown
// codes keep the raw code as symbol; the empty code formats plain numbers.
func CurrencyFor(code string) CurrencyContext {
	code = strings.ToUpper(strings.TrimSpace(code))
	c := CurrencyContext{Code: code, Precision: 2}
	if code == "" {
		return c
	}
	if sym, ok := currencySymbols[code]; ok {
		c.Symbol = sym
	} else {
		c.Symbol = code
	}
	if zeroDecimalCurrencies[code] {
		c.Precision = 0
	}
	return c
}

var printer = message.NewPrinter(language.English)

// groupNumber formats v with thousands separators and prec decimals.
func groupNumber(v float64, prec int) string {
	if prec < 0 {
		prec = 0
	}
	return printer.Sprintf("%."+strconv.Itoa(prec)+"f", v)
}

// FormatAmount formats v with the currency symbol, grouping and precision.
// Alphabetic fallback symbols are separated from the digits by a space.
func (c CurrencyContext) FormatAmount(v float64) string {
	neg := v < 0 && math.Round(-v*math.Pow10(c.Precision)) != 0
	s := groupNumber(math.Abs(v), c.Precision)
	switch {
	case c.Symbol == "":
	case c.Symbol == c.Code:
		s = c.Symbol + " " + s
	default:
		s = c.Symbol + s
	}
	if neg {
		return "-" + s
	}
	return s
}
