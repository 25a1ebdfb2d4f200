package market

import (
	"fmt"
	"math"
	"time"
)

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

func (c Candle) TimeString() string {
	ts := c.CloseTime
	if ts == 0 {
		ts = c.OpenTime
	}
	if ts <= 0 {
		return "-"
	}
	return time.UnixMilli(ts).UTC().Format("2006-01-02 15:04") + "Z"
}

// Series is an ordered run of candles for one symbol and interval.
// Agents receive it read-only and must not mutate it.
type Series []Candle

// Validate enforces the series invariants: strictly increasing open times,
// finite prices, internally consistent OHLC and non-negative volume.
func (s Series) Validate() error {
	for i, c := range s {
		if i > 0 && c.OpenTime <= s[i-1].OpenTime {
			return fmt.Errorf("candle %d: open time %d not after previous %d", i, c.OpenTime, s[i-1].OpenTime)
		}
		for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("candle %d: non-finite field", i)
			}
		}
		if c.Volume < 0 {
			return fmt.Errorf("candle %d: negative volume %f", i, c.Volume)
		}
		if c.High < c.Low {
			return fmt.Errorf("candle %d: high %f below low %f", i, c.High, c.Low)
		}
		if c.High < math.Max(c.Open, c.Close) || c.Low > math.Min(c.Open, c.Close) {
			return fmt.Errorf("candle %d: open/close outside high/low range", i)
		}
	}
	return nil
}

func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Low
	}
	return out
}

func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Volume
	}
	return out
}

func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

func (s Series) LastClose() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Close
}

// Clone returns an independent copy, used when handing a cached series to
// a request so callers can never alias cache-owned memory.
func (s Series) Clone() Series {
	if len(s) == 0 {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}
