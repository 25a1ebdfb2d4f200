package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Symbol
	}{
		{"BTC/USDT", Symbol{Base: "BTC", Quote: "USDT"}},
		{"BTCUSDT", Symbol{Base: "BTC", Quote: "USDT"}},
		{"btc/usdt:USDT", Symbol{Base: "BTC", Quote: "USDT"}},
		{"ETHBTC", Symbol{Base: "ETH", Quote: "BTC"}},
		{"AAPL", Symbol{Base: "AAPL"}},
		{"  sol/usdc ", Symbol{Base: "SOL", Quote: "USDC"}},
		{"", Symbol{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Parse(tc.in), "input %q", tc.in)
	}
}

func TestIsPair(t *testing.T) {
	assert.True(t, Parse("BTCUSDT").IsPair())
	assert.False(t, Parse("AAPL").IsPair())
	assert.False(t, Symbol{}.IsPair())
}

func TestClean(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Clean("btc/usdt"))
	assert.Equal(t, "BTCUSDT", Clean("BTC/USDT:USDT"))
	assert.Equal(t, "AAPL", Clean(" aapl "))
}

func TestToYahoo(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"BTCUSDT", "BTC-USD"},
		{"BTC/USDT", "BTC-USD"},
		{"ETH/USDC", "ETH-USD"},
		{"ETHBTC", "ETH-BTC"},
		{"AAPL", "AAPL"},
		{"tsla", "TSLA"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ToYahoo(tc.in), "input %q", tc.in)
	}
}
