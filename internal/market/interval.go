package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var supportedIntervals = map[string]struct{}{
	"1m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "4h": {}, "1d": {}, "1w": {},
}

// NormalizeInterval lowercases and validates an interval token against the
// closed supported set.
func NormalizeInterval(interval string) (string, error) {
	iv := strings.ToLower(strings.TrimSpace(interval))
	if _, ok := supportedIntervals[iv]; !ok {
		return "", fmt.Errorf("unsupported interval %q", interval)
	}
	return iv, nil
}

// IntervalDuration parses "15m", "1h", "4h", "1d", "1w" into a duration.
// Returns (0, false) on invalid input.
func IntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return 0, false
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

const defaultUnclosedGrace = 10 * time.Second

// DropUnclosed removes the trailing candle when its period has not closed
// yet. Exchange kline endpoints include the in-progress candle; analysis
// must only see closed bars so repeated runs over one period agree.
func DropUnclosed(series Series, interval time.Duration) Series {
	return dropUnclosedAt(series, interval, time.Now().UTC(), defaultUnclosedGrace)
}

func dropUnclosedAt(series Series, interval time.Duration, now time.Time, grace time.Duration) Series {
	if len(series) == 0 || interval <= 0 {
		return series
	}
	if grace < 0 {
		grace = 0
	}
	last := series[len(series)-1]
	if last.OpenTime <= 0 {
		return series
	}
	closeMs := last.OpenTime + interval.Milliseconds()
	if now.UnixMilli() < closeMs+grace.Milliseconds() {
		return series[:len(series)-1]
	}
	return series
}
