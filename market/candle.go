package market

import "time"

// Candle represents OHLC (Open, High, Low, Close) bar data. Time is the end
// of the bar.
type Candle struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	time.Time
	Volume float64
}

// Reverse flips candles in place, turning oldest-first into newest-first.
func Reverse(cs []Candle) {
	for i, j := 0, len(cs)-1; i < j; i, j = i+1, j-1 {
		cs[i], cs[j] = cs[j], cs[i]
	}
}
