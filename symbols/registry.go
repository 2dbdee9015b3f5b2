// Package symbols keeps the subscribed instruments and reconciles market data
// callbacks into their quote, trade and readiness snapshots.
package symbols

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/metrics"
	"github.com/rustyeddy/futbridge/poll"
	"github.com/rustyeddy/futbridge/snapshot"
)

// ErrNoData matches every NoDataError.
var ErrNoData = errors.New("no data")

// NoDataError is returned when a symbol did not become ready in time.
// Repeated is set when an earlier call already timed out for the asset.
type NoDataError struct {
	Asset    string
	Repeated bool
}

func (e *NoDataError) Error() string { return e.Asset + " no data" }
func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

// Subscriber issues market data subscriptions.
type Subscriber interface {
	Subscribe(exchange, ticker string, flags gateway.SubscribeFlags) error
}

// SubscribeFlags are the data classes every symbol is subscribed to.
const SubscribeFlags = gateway.SubPrints | gateway.SubBest | gateway.SubMarketMode

type Option func(*Registry)

// WithNotify registers fn to run after every applied quote, trade or mode
// change. fn runs on gateway goroutines.
func WithNotify(fn func(*Symbol)) Option {
	return func(r *Registry) { r.notify = fn }
}

type Registry struct {
	sub     Subscriber
	log     *zap.Logger
	notify  func(*Symbol)
	symbols snapshot.Value[map[string]*Symbol]
}

func NewRegistry(sub Subscriber, log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{sub: sub, log: log}
	r.symbols.Store(map[string]*Symbol{})
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get returns the symbol for a "TICKER.EXCHANGE" key.
func (r *Registry) Get(asset string) (*Symbol, bool) {
	s, ok := r.symbols.Load()[asset]
	return s, ok
}

func (r *Registry) lookup(exchange, ticker string) *Symbol {
	s, ok := r.Get(market.Instrument{Ticker: ticker, Exchange: exchange}.Symbol())
	if !ok {
		metrics.Ignored.WithLabelValues("market_data", "unknown_symbol").Inc()
		r.log.Debug("market data for unknown symbol",
			zap.String("ticker", ticker), zap.String("exchange", exchange))
		return nil
	}
	return s
}

// All returns the subscribed symbols ordered by key.
func (r *Registry) All() []*Symbol {
	m := r.symbols.Load()
	keys := slices.Sorted(maps.Keys(m))
	out := make([]*Symbol, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// Subscribe registers asset and subscribes it to top of book, trade prints and
// market mode. An already registered asset is returned as is. When the
// gateway rejects the subscription the symbol is removed again.
func (r *Registry) Subscribe(asset string) (*Symbol, error) {
	inst, err := market.ParseAsset(asset)
	if err != nil {
		return nil, err
	}
	if s, ok := r.Get(asset); ok {
		return s, nil
	}

	fresh := newSymbol(inst)
	var installed *Symbol
	r.symbols.Update(func(cur map[string]*Symbol) (map[string]*Symbol, bool) {
		if s, ok := cur[asset]; ok {
			installed = s
			return cur, false
		}
		next := maps.Clone(cur)
		next[asset] = fresh
		installed = fresh
		return next, true
	})
	if installed != fresh {
		return installed, nil
	}

	if err := r.sub.Subscribe(inst.Exchange, inst.Ticker, SubscribeFlags); err != nil {
		r.remove(asset)
		return nil, errors.WithMessagef(err, "subscribe %s", asset)
	}
	r.log.Info("subscribed", zap.String("symbol", asset))
	return fresh, nil
}

func (r *Registry) remove(asset string) {
	r.symbols.Update(func(cur map[string]*Symbol) (map[string]*Symbol, bool) {
		if _, ok := cur[asset]; !ok {
			return cur, false
		}
		next := maps.Clone(cur)
		delete(next, asset)
		return next, true
	})
}

// Quote is what a host price query sees of a symbol.
type Quote struct {
	Top
	Trade    Trade
	Tradable bool
}

// WaitReady blocks until s is ready. The first timeout for a symbol returns a
// NoDataError; later calls return one with Repeated set, without waiting.
func (r *Registry) WaitReady(s *Symbol, progress poll.Progress, timeout time.Duration) error {
	if s.IsReady() {
		return nil
	}
	if s.noData.Load() {
		return &NoDataError{Asset: s.Key(), Repeated: true}
	}

	start := time.Now()
	out := poll.Until(progress, timeout, s.IsReady)
	metrics.ObserveWait("quote", start)
	switch out {
	case poll.Cancelled:
		return poll.ErrCancelled
	case poll.TimedOut:
		first := s.noData.CompareAndSwap(false, true)
		r.log.Warn("symbol not ready", zap.String("symbol", s.Key()), zap.Uint32("ready", s.Ready()))
		return &NoDataError{Asset: s.Key(), Repeated: !first}
	}
	return nil
}

// Quote subscribes asset if needed, waits for it to be ready and returns its
// current quote.
func (r *Registry) Quote(asset string, progress poll.Progress, timeout time.Duration) (Quote, error) {
	s, err := r.Subscribe(asset)
	if err != nil {
		return Quote{}, err
	}
	if err := r.WaitReady(s, progress, timeout); err != nil {
		return Quote{}, err
	}
	return Quote{Top: s.Top(), Trade: s.LastTrade(), Tradable: s.Tradable()}, nil
}

func applyBid(t Top, q gateway.Quote) (Top, bool) {
	if q.HasPrice {
		t.BidPrice = q.Price
	}
	if q.HasSize {
		t.BidQty = q.Size
	}
	return t, q.HasPrice || q.HasSize
}

func applyAsk(t Top, q gateway.Quote) (Top, bool) {
	if q.HasPrice {
		t.AskPrice = q.Price
	}
	if q.HasSize {
		t.AskQty = q.Size
	}
	return t, q.HasPrice || q.HasSize
}

func (r *Registry) ApplyBid(q gateway.Quote) {
	s := r.lookup(q.Exchange, q.Ticker)
	if s == nil {
		return
	}
	s.top.Update(func(t Top) (Top, bool) { return applyBid(t, q) })
	r.topChanged(s)
}

func (r *Registry) ApplyAsk(q gateway.Quote) {
	s := r.lookup(q.Exchange, q.Ticker)
	if s == nil {
		return
	}
	s.top.Update(func(t Top) (Top, bool) { return applyAsk(t, q) })
	r.topChanged(s)
}

// ApplyBidAsk applies both sides in one snapshot.
func (r *Registry) ApplyBidAsk(bid, ask gateway.Quote) {
	s := r.lookup(bid.Exchange, bid.Ticker)
	if s == nil {
		return
	}
	s.top.Update(func(t Top) (Top, bool) {
		t, b := applyBid(t, bid)
		t, a := applyAsk(t, ask)
		return t, a || b
	})
	r.topChanged(s)
}

func (r *Registry) topChanged(s *Symbol) {
	if s.top.Load().Complete() && s.ready.Set(ReadyTop) {
		r.log.Debug("top of book ready", zap.String("symbol", s.Key()))
	}
	r.fire(s)
}

func aggressor(b gateway.BuySell) market.Side {
	switch b {
	case gateway.Buy:
		return market.Buy
	case gateway.Sell, gateway.SellShort:
		return market.Sell
	}
	return market.Unknown
}

// ApplyTrade records a trade print. Prints without a price are ignored.
func (r *Registry) ApplyTrade(p gateway.TradePrint) {
	if !p.HasPrice {
		return
	}
	s := r.lookup(p.Exchange, p.Ticker)
	if s == nil {
		return
	}
	s.trade.Update(func(t Trade) (Trade, bool) {
		t.Side = aggressor(p.Aggressor)
		t.Price = p.Price
		t.Qty = p.Size
		t.Time = gateway.Stamp(p.Ssboe, p.Usecs)
		if p.HasVolumeBought {
			t.BuyVolume = p.VolumeBought
		}
		if p.HasVolumeSold {
			t.SellVolume = p.VolumeSold
		}
		return t, true
	})
	r.fire(s)
}

// ApplyMarketMode sets tradability and the status readiness bit.
func (r *Registry) ApplyMarketMode(m gateway.MarketMode) {
	s := r.lookup(m.Exchange, m.Ticker)
	if s == nil {
		return
	}
	s.open.Store(m.Tradable())
	s.ready.Set(ReadyStatus)
	r.log.Debug("market mode", zap.String("symbol", s.Key()), zap.String("mode", m.Mode),
		zap.String("event", m.Event), zap.String("reason", m.Reason))
	r.fire(s)
}

func (r *Registry) ApplyRefData(d gateway.RefData) {
	s := r.lookup(d.Exchange, d.Ticker)
	if s == nil {
		return
	}
	s.spec.Update(func(sp Spec) (Spec, bool) {
		sp.Product = d.ProductCode
		sp.Description = d.Description
		sp.Tradable = d.Tradable
		if d.PointValue > 0 && !math.IsNaN(d.PointValue) {
			sp.PointValue = d.PointValue
		}
		return sp, true
	})
}

func (r *Registry) ApplyPriceIncr(p gateway.PriceIncr) {
	s := r.lookup(p.Exchange, p.Ticker)
	if s == nil {
		return
	}
	s.spec.Update(func(sp Spec) (Spec, bool) {
		sp.PriceIncrement = p.Increment
		return sp, true
	})
}

func (r *Registry) fire(s *Symbol) {
	if r.notify != nil {
		r.notify(s)
	}
}
