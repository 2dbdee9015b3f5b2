package session

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/poll"
	"github.com/rustyeddy/futbridge/request"
)

// DailyMinutes is the bar period the host uses to ask for daily bars.
const DailyMinutes = 864000

// barBatch collects the bars of one replay. Callbacks claim slots with an
// atomic counter; the host reads them after the replay completed.
type barBatch struct {
	bars []gateway.Bar
	n    atomic.Int32
}

func (b *barBatch) add(bar gateway.Bar) {
	i := int(b.n.Add(1) - 1)
	if i < len(b.bars) {
		b.bars[i] = bar
	}
}

func (b *barBatch) collected() []gateway.Bar {
	n := min(int(b.n.Load()), len(b.bars))
	return b.bars[:n]
}

// ReplayBars fetches up to max bars of asset between start and end, newest
// first. Each candle is stamped with the end of its bar.
func (s *Session) ReplayBars(asset string, start, end time.Time, minutes, max int, progress poll.Progress) ([]market.Candle, error) {
	inst, err := market.ParseAsset(asset)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		return nil, nil
	}

	params := gateway.BarParams{Exchange: inst.Exchange, Ticker: inst.Ticker, Type: gateway.MinuteBar, Period: minutes}
	if minutes == DailyMinutes {
		params.Type = gateway.DailyBar
		params.Period = 1
		params.StartDate = start.UTC().Format("20060102")
		params.EndDate = end.UTC().Format("20060102")
	} else {
		params.StartSsboe = start.Unix()
		params.EndSsboe = end.Unix()
	}

	batch := &barBatch{bars: make([]gateway.Bar, max)}
	s.bars.Store(batch)
	defer s.bars.Store(nil)

	if err := s.track(request.Bars, progress, 0, func() error { return s.gw.ReplayBars(params) }); err != nil {
		return nil, errors.WithMessagef(err, "replay bars %s", asset)
	}

	got := batch.collected()
	out := make([]market.Candle, 0, len(got))
	for _, b := range got {
		out = append(out, market.Candle{
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Time:   time.Unix(b.EndSsboe, 0).UTC(),
			Volume: float64(b.Volume),
		})
	}
	market.Reverse(out)
	return out, nil
}
