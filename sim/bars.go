package sim

import (
	"math"
	"math/rand"
	"time"

	"github.com/rustyeddy/futbridge/gateway"
)

// MaxBars bounds a single bar replay.
const MaxBars = 20000

// ReplayBars generates bars between the requested bounds from a random walk
// seeded by the engine seed and the start time, so the same request always
// gets the same bars. Unknown instruments are rejected with the no data
// code.
func (e *Engine) ReplayBars(p gateway.BarParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("replay bars"); err != nil {
		return err
	}
	b, ok := e.books[p.Ticker+"."+p.Exchange]
	if !ok {
		return &gateway.Error{Op: "replay bars", Code: gateway.CodeNoData, Text: "no data"}
	}

	var start, end, step int64
	switch p.Type {
	case gateway.DailyBar:
		from, err1 := time.Parse("20060102", p.StartDate)
		to, err2 := time.Parse("20060102", p.EndDate)
		if err1 != nil || err2 != nil {
			return &gateway.Error{Op: "replay bars", Code: gateway.CodeBadParams, Text: "bad date"}
		}
		start, end, step = from.Unix(), to.AddDate(0, 0, 1).Unix(), 86400
	case gateway.MinuteBar:
		if p.Period <= 0 {
			return &gateway.Error{Op: "replay bars", Code: gateway.CodeBadParams, Text: "bad period"}
		}
		start, end, step = p.StartSsboe, p.EndSsboe, int64(p.Period)*60
	default:
		return gateway.Reject("replay bars", gateway.CodeBadParams)
	}

	bars := walk(b.in, p.Type, start, end, step, rand.New(rand.NewSource(e.opts.Seed^start)))
	done := gateway.BarReplay{Exchange: p.Exchange, Ticker: p.Ticker, Type: p.Type}
	e.emit(func(h gateway.Handler) {
		for _, bar := range bars {
			h.Bar(bar)
		}
		h.BarReplay(done)
	})
	return nil
}

func walk(in Instrument, typ gateway.BarType, start, end, step int64, rng *rand.Rand) []gateway.Bar {
	var bars []gateway.Bar
	price := in.Price
	for t := start; t+step <= end && len(bars) < MaxBars; t += step {
		open := price
		close := math.Max(in.Tick, round(open+float64(rng.Intn(9)-4)*in.Tick, in.Tick))
		high := math.Max(open, close) + float64(rng.Intn(3))*in.Tick
		low := math.Max(in.Tick, math.Min(open, close)-float64(rng.Intn(3))*in.Tick)
		bars = append(bars, gateway.Bar{
			Exchange:   in.Exchange,
			Ticker:     in.Ticker,
			Type:       typ,
			StartSsboe: t,
			EndSsboe:   t + step,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      close,
			Volume:     1 + rng.Int63n(1000),
		})
		price = close
	}
	return bars
}
