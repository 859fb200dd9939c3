package currency

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultCode is assumed when a price label carries no recognised symbol.
const DefaultCode = "USD"

// Price is a parsed price label.
type Price struct {
	Amount float64
	Code   string
}

type symbol struct {
	text string
	code string
}

// symbolTable maps price symbols to ISO codes. It is ordered longest symbol
// first so that "HK$" wins over "$".
var symbolTable = buildSymbolTable(map[string]string{
	"$":   "USD",
	"€":   "EUR",
	"£":   "GBP",
	"¥":   "JPY",
	"₹":   "INR",
	"A$":  "AUD",
	"C$":  "CAD",
	"CHF": "CHF",
	"CN¥": "CNY",
	"HK$": "HKD",
	"NZ$": "NZD",
	"SEK": "SEK",
	"NOK": "NOK",
	"DKK": "DKK",
	"PLN": "PLN",
	"R$":  "BRL",
	"ZAR": "ZAR",
	"MXN": "MXN",
})

func buildSymbolTable(m map[string]string) []symbol {
	out := make([]symbol, 0, len(m))
	for s, c := range m {
		out = append(out, symbol{text: s, code: c})
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := len([]rune(out[i].text)), len([]rune(out[j].text))
		if li != lj {
			return li > lj
		}
		return out[i].text < out[j].text
	})
	return out
}

// Symbols returns a copy of the supported symbol to code mapping.
func Symbols() map[string]string {
	out := make(map[string]string, len(symbolTable))
	for _, s := range symbolTable {
		out[s.text] = s.code
	}
	return out
}

// Parse extracts an amount and currency code from a free-form price label
// such as "$19.99", "₹1,200" or "HK$ 88". It returns false when no number
// can be read.
func Parse(label string) (Price, bool) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return Price{}, false
	}

	code := DefaultCode
	cleaned := trimmed
	upper := strings.ToUpper(trimmed)
	for _, s := range symbolTable {
		if strings.Contains(upper, strings.ToUpper(s.text)) {
			code = s.code
			cleaned = removeFold(cleaned, s.text)
			break
		}
	}

	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.TrimFunc(cleaned, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '.'
	})
	if cleaned == "" {
		return Price{}, false
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Price{}, false
	}
	return Price{Amount: amount, Code: code}, true
}

// removeFold removes every case-insensitive occurrence of sub from s.
func removeFold(s, sub string) string {
	if sub == "" {
		return s
	}
	upperSub := strings.ToUpper(sub)
	var b strings.Builder
	rs := []rune(s)
	n := len([]rune(sub))
	for i := 0; i < len(rs); {
		if i+n <= len(rs) && strings.ToUpper(string(rs[i:i+n])) == upperSub {
			i += n
			continue
		}
		b.WriteRune(rs[i])
		i++
	}
	return b.String()
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FormatAmount renders amount in the given currency for display. INR is
// shown without fraction digits.
func FormatAmount(amount float64, code string) string {
	code = NormalizeCode(code)
	sym := displaySymbol(code)
	digits := 2
	if code == "INR" || code == "JPY" {
		digits = 0
	}
	num := groupThousands(strconv.FormatFloat(amount, 'f', digits, 64))
	if sym == "" {
		return fmt.Sprintf("%s %s", code, num)
	}
	return sym + num
}

func displaySymbol(code string) string {
	switch code {
	case "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	case "JPY":
		return "¥"
	case "INR":
		return "₹"
	}
	for _, s := range symbolTable {
		if s.code == code && s.text != code {
			return s.text
		}
	}
	return ""
}

func groupThousands(num string) string {
	neg := strings.HasPrefix(num, "-")
	num = strings.TrimPrefix(num, "-")
	intPart, frac := num, ""
	if i := strings.IndexByte(num, '.'); i >= 0 {
		intPart, frac = num[:i], num[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}
