package broker

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/symbols"
)

type Quote struct {
	Price  float64
	Spread float64
	Volume float64
}

// Asset subscribes asset when needed. Without wantPrice it returns right
// after subscribing; otherwise it waits for a full quote. The first time an
// asset does not become ready the host is told it has no data; later calls
// fail at once without a message.
func (p *Plugin) Asset(asset string, wantPrice bool) (Quote, error) {
	s, err := p.session()
	if err != nil {
		return Quote{}, err
	}
	if !wantPrice {
		if _, err := s.Subscribe(asset); err != nil {
			return Quote{}, p.fail(err)
		}
		return Quote{}, nil
	}

	q, err := s.Quote(asset, p.progress())
	if err != nil {
		var nd *symbols.NoDataError
		if errors.As(err, &nd) {
			if !nd.Repeated {
				p.report(asset + " no data")
			}
			return Quote{}, err
		}
		return Quote{}, p.fail(err)
	}

	out := Quote{Price: q.AskPrice}
	if p.settings.PriceType == PriceTrade && !math.IsNaN(q.Trade.Price) {
		out.Price = q.Trade.Price
	}
	if !math.IsNaN(q.BidPrice) {
		out.Spread = q.AskPrice - q.BidPrice
	}
	out.Volume = p.volume(q)
	return out, nil
}

func (p *Plugin) volume(q symbols.Quote) float64 {
	delta := float64(q.Trade.BuyVolume - q.Trade.SellVolume)
	sizes := float64(q.BidQty + q.AskQty)
	switch p.settings.VolType {
	case 0:
		if p.settings.PriceType == PriceTrade {
			return delta
		}
		return sizes
	case 2, 4:
		return delta
	case 3:
		return sizes
	case 5:
		return q.AskPrice
	case 6:
		return q.BidPrice
	}
	return 0
}

// History returns at most nTicks bars of asset ending at end, newest first.
// tickMinutes of session.DailyMinutes asks for daily bars. Assets the server has no
// data for return no bars from then on.
func (p *Plugin) History(asset string, start, end time.Time, tickMinutes, nTicks int) ([]market.Candle, error) {
	s, err := p.session()
	if err != nil {
		return nil, err
	}
	if p.noData[asset] {
		return nil, nil
	}

	cs, err := s.ReplayBars(asset, start, end, tickMinutes, nTicks, p.progress())
	if err != nil {
		if gateway.IsNoData(err) {
			p.noData[asset] = true
		}
		return nil, p.fail(err)
	}
	if len(cs) > 0 {
		p.log.Debug("history", zap.String("asset", asset), zap.Int("bars", len(cs)),
			zap.Time("first", cs[len(cs)-1].Time), zap.Time("last", cs[0].Time))
	}
	return cs, nil
}
