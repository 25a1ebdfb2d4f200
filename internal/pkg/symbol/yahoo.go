package symbol

import "strings"

// ToYahoo maps an identifier to Yahoo Finance's symbol form. Crypto pairs
// become dash-separated against USD ("BTCUSDT" -> "BTC-USD"); stablecoin
// quotes collapse to USD since Yahoo quotes crypto in fiat. Plain tickers
// pass through unchanged.
func ToYahoo(s string) string {
	sym := Parse(s)
	if !sym.IsPair() {
		return strings.ToUpper(strings.TrimSpace(s))
	}
	quote := sym.Quote
	switch quote {
	case "USDT", "USDC", "BUSD", "TUSD":
		quote = "USD"
	}
	return sym.Base + "-" + quote
}
