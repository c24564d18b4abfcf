package market

import (
	"fmt"
	"math"
	"strings"
)

// Symbol is a traded pair written "BASE/QUOTE", e.g. "BTC/USDT".
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) String() string {
	return s.Base + "/" + s.Quote
}

// ParseSymbol splits "BASE/QUOTE". Both halves are upper-cased and must be
// non-empty.
func ParseSymbol(s string) (Symbol, error) {
	base, quote, ok := strings.Cut(strings.TrimSpace(s), "/")
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if !ok || base == "" || quote == "" || strings.Contains(quote, "/") {
		return Symbol{}, fmt.Errorf("symbol %q: want BASE/QUOTE", s)
	}
	return Symbol{Base: base, Quote: quote}, nil
}

// ValidPrice reports whether p can be used as a price: finite and positive.
// NaN has no place in a price-ordered book.
func ValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
