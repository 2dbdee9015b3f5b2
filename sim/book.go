package sim

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
)

type book struct {
	in         Instrument
	bid, ask   float64
	last       float64
	bought     int64
	sold       int64
	subscribed bool
}

func newBook(in Instrument) *book {
	return &book{in: in, bid: in.Price - in.Tick, ask: in.Price, last: in.Price}
}

func (b *book) mid() float64 { return (b.bid + b.ask) / 2 }

func round(price, tick float64) float64 {
	return math.Round(price/tick) * tick
}

// Subscribe starts market data for a known instrument: reference data, the
// price increment, the top of book, the last trade and the market mode.
// Unknown instruments are accepted and never quoted.
func (e *Engine) Subscribe(exchange, ticker string, flags gateway.SubscribeFlags) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("subscribe"); err != nil {
		return err
	}

	b, ok := e.books[ticker+"."+exchange]
	if !ok {
		e.log.Debug("subscribe to unknown instrument", zap.String("exchange", exchange), zap.String("ticker", ticker))
		return nil
	}
	b.subscribed = true

	in := b.in
	e.emit(func(h gateway.Handler) {
		h.RefData(gateway.RefData{
			Exchange: in.Exchange, Ticker: in.Ticker, ProductCode: in.Product,
			Description: in.Description, Tradable: true, PointValue: in.PointValue,
		})
		h.PriceIncrUpdate(gateway.PriceIncr{Exchange: in.Exchange, Ticker: in.Ticker, Increment: in.Tick})
	})
	if flags&gateway.SubBest != 0 {
		e.emitTop(b)
	}
	if flags&gateway.SubPrints != 0 {
		e.emitTrade(b, 0, "")
	}
	if flags&gateway.SubMarketMode != 0 {
		e.emit(func(h gateway.Handler) {
			h.MarketMode(gateway.MarketMode{Exchange: in.Exchange, Ticker: in.Ticker, Mode: gateway.ModeOpen, Event: "Open"})
		})
	}
	return nil
}

func (e *Engine) Unsubscribe(exchange, ticker string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.books[ticker+"."+exchange]; ok {
		b.subscribed = false
	}
	return nil
}

func (e *Engine) emitTop(b *book) {
	in := b.in
	bid := gateway.Quote{Exchange: in.Exchange, Ticker: in.Ticker, Price: b.bid, HasPrice: true, Size: 1 + e.rng.Int63n(50), HasSize: true}
	ask := gateway.Quote{Exchange: in.Exchange, Ticker: in.Ticker, Price: b.ask, HasPrice: true, Size: 1 + e.rng.Int63n(50), HasSize: true}
	e.emit(func(h gateway.Handler) { h.BestBidAskQuote(bid, ask) })
}

func (e *Engine) emitTrade(b *book, size int64, aggressor gateway.BuySell) {
	ssboe, usecs := e.stamp()
	p := gateway.TradePrint{
		Exchange: b.in.Exchange, Ticker: b.in.Ticker,
		Price: b.last, HasPrice: true, Size: size, Aggressor: aggressor,
		VolumeBought: b.bought, HasVolumeBought: true,
		VolumeSold: b.sold, HasVolumeSold: true,
		Ssboe: ssboe, Usecs: usecs,
	}
	e.emit(func(h gateway.Handler) { h.TradePrint(p) })
}

// Advance moves every instrument by a random number of ticks, prints a trade
// at the new price and works the resting orders against the new top.
func (e *Engine) Advance() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, b := range e.books {
		step := float64(e.rng.Intn(5)-2) * b.in.Tick
		b.bid = round(b.bid+step, b.in.Tick)
		if b.bid <= 0 {
			b.bid = b.in.Tick
		}
		b.ask = b.bid + b.in.Tick

		size := 1 + e.rng.Int63n(10)
		var aggressor gateway.BuySell
		if e.rng.Intn(2) == 0 {
			b.last = b.ask
			b.bought += size
			aggressor = gateway.Buy
		} else {
			b.last = b.bid
			b.sold += size
			aggressor = gateway.Sell
		}

		if b.subscribed {
			e.emitTop(b)
			e.emitTrade(b, size, aggressor)
		}
		e.workOrders(b)
	}
	e.publishPnl()
}

// Run advances the market every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.Advance()
		}
	}
}
