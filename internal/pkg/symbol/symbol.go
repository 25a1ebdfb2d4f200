package symbol

import (
	"strings"
)

// Symbol splits an instrument identifier into base and quote currency.
// Equity-style tickers without a recognized quote leave Quote empty.
type Symbol struct {
	Base  string
	Quote string
}

var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

// Parse accepts "BTC/USDT", "BTCUSDT" or a plain ticker like "AAPL".
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{Base: strings.TrimSpace(parts[0]), Quote: strings.TrimSpace(parts[1])}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{Base: s}
}

// IsPair reports whether the symbol carries a recognized quote currency.
func (s Symbol) IsPair() bool {
	return s.Base != "" && s.Quote != ""
}

// Clean uppercases and strips separators, the form exchange kline
// endpoints expect ("BTC/USDT" -> "BTCUSDT").
func Clean(s string) string {
	up := strings.ToUpper(strings.TrimSpace(s))
	up = strings.ReplaceAll(up, "/", "")
	if idx := strings.Index(up, ":"); idx >= 0 {
		up = up[:idx]
	}
	return up
}
