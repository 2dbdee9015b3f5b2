package symbols

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/poll"
)

type fakeSubscriber struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSubscriber) Subscribe(exchange, ticker string, flags gateway.SubscribeFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ticker+"."+exchange)
	return f.err
}

func newTestRegistry(t *testing.T) (*Registry, *fakeSubscriber) {
	t.Helper()
	sub := &fakeSubscriber{}
	return NewRegistry(sub, nil), sub
}

func bid(price float64, size int64) gateway.Quote {
	return gateway.Quote{Exchange: "EXCH", Ticker: "ABC", Price: price, HasPrice: true, Size: size, HasSize: true}
}

func ask(price float64, size int64) gateway.Quote {
	q := bid(price, size)
	return q
}

func TestSubscribeRoundTrip(t *testing.T) {
	t.Parallel()

	r, sub := newTestRegistry(t)
	s, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)
	assert.Equal(t, "ABC", s.Ticker)
	assert.Equal(t, "EXCH", s.Exchange)

	got, ok := r.Get("ABC.EXCH")
	require.True(t, ok)
	assert.Same(t, s, got)

	// second subscribe is a no-op
	again, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, []string{"ABC.EXCH"}, sub.calls)

	top := s.Top()
	assert.True(t, math.IsNaN(top.BidPrice))
	assert.True(t, math.IsNaN(top.AskPrice))
	assert.True(t, math.IsNaN(s.LastTrade().Price))
}

func TestSubscribeRejectedRemovesSymbol(t *testing.T) {
	t.Parallel()

	r, sub := newTestRegistry(t)
	sub.err = gateway.Reject("subscribe", gateway.CodeBadParams)

	_, err := r.Subscribe("ABC.EXCH")
	require.Error(t, err)
	_, ok := r.Get("ABC.EXCH")
	assert.False(t, ok)
	assert.Empty(t, r.All())
}

func TestSubscribeInvalidSymbol(t *testing.T) {
	t.Parallel()

	r, sub := newTestRegistry(t)
	_, err := r.Subscribe("ABC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid symbol ABC")
	assert.Empty(t, sub.calls)
}

func TestPresenceFlagsLeaveFieldsAlone(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	s, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)

	r.ApplyBid(bid(99.5, 10))
	r.ApplyBid(gateway.Quote{Exchange: "EXCH", Ticker: "ABC", Size: 3, HasSize: true})
	top := s.Top()
	assert.Equal(t, 99.5, top.BidPrice)
	assert.Equal(t, int64(3), top.BidQty)

	r.ApplyAsk(gateway.Quote{Exchange: "EXCH", Ticker: "ABC", Price: 100, HasPrice: true})
	top = s.Top()
	assert.Equal(t, 100.0, top.AskPrice)
	assert.Zero(t, top.AskQty)
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	s, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)

	r.ApplyAsk(ask(100, 1))
	assert.Zero(t, s.Ready()&ReadyTop, "ask alone is not a full top")

	r.ApplyBid(bid(99.75, 2))
	assert.NotZero(t, s.Ready()&ReadyTop)
	assert.False(t, s.IsReady())

	r.ApplyMarketMode(gateway.MarketMode{Exchange: "EXCH", Ticker: "ABC", Mode: gateway.ModePreOpen})
	assert.True(t, s.IsReady())
	assert.True(t, s.Tradable())

	// readiness never goes back, tradability follows the mode
	r.ApplyMarketMode(gateway.MarketMode{Exchange: "EXCH", Ticker: "ABC", Mode: "Closed"})
	assert.True(t, s.IsReady())
	assert.False(t, s.Tradable())
}

func TestBidAskAtomicPair(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	s, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)

	r.ApplyBidAsk(bid(10, 1), ask(11, 2))
	top := s.Top()
	assert.Equal(t, Top{BidPrice: 10, BidQty: 1, AskPrice: 11, AskQty: 2}, top)
	assert.NotZero(t, s.Ready()&ReadyTop)
}

func TestTradePrint(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	s, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)

	r.ApplyTrade(gateway.TradePrint{Exchange: "EXCH", Ticker: "ABC", Price: 101, HasPrice: true, Size: 4,
		Aggressor: gateway.Sell, VolumeBought: 50, HasVolumeBought: true, VolumeSold: 70, HasVolumeSold: true,
		Ssboe: 1_700_000_000, Usecs: 5})
	r.ApplyTrade(gateway.TradePrint{Exchange: "EXCH", Ticker: "ABC", Price: 102, HasPrice: true, Size: 1,
		Aggressor: gateway.Buy, VolumeBought: 51, HasVolumeBought: true})
	// no price, no effect
	r.ApplyTrade(gateway.TradePrint{Exchange: "EXCH", Ticker: "ABC", Size: 9})

	tr := s.LastTrade()
	assert.Equal(t, market.Buy, tr.Side)
	assert.Equal(t, 102.0, tr.Price)
	assert.Equal(t, int64(1), tr.Qty)
	assert.Equal(t, int64(51), tr.BuyVolume)
	assert.Equal(t, int64(70), tr.SellVolume)
}

func TestUnknownSymbolIgnored(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	r.ApplyBid(bid(1, 1))
	r.ApplyMarketMode(gateway.MarketMode{Exchange: "EXCH", Ticker: "ABC", Mode: gateway.ModeOpen})
	assert.Empty(t, r.All())
}

func TestRefDataAndIncrement(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	s, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)

	r.ApplyRefData(gateway.RefData{Exchange: "EXCH", Ticker: "ABC", ProductCode: "AB", Tradable: true, PointValue: 50})
	r.ApplyPriceIncr(gateway.PriceIncr{Exchange: "EXCH", Ticker: "ABC", Increment: 0.25})
	assert.Equal(t, Spec{Product: "AB", Tradable: true, PointValue: 50, PriceIncrement: 0.25}, s.Spec())
}

func TestQuoteWaitsForReadiness(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	_, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)

	go func() {
		time.Sleep(5 * time.Millisecond)
		r.ApplyBidAsk(bid(10, 1), ask(10.25, 2))
		r.ApplyMarketMode(gateway.MarketMode{Exchange: "EXCH", Ticker: "ABC", Mode: gateway.ModeOpen})
	}()

	q, err := r.Quote("ABC.EXCH", poll.Always, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10.25, q.AskPrice)
	assert.True(t, q.Tradable)
}

func TestQuoteNoDataOnce(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)

	_, err := r.Quote("ABC.EXCH", poll.Always, 10*time.Millisecond)
	var nd *NoDataError
	require.True(t, errors.As(err, &nd))
	assert.False(t, nd.Repeated)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.Equal(t, "ABC.EXCH no data", err.Error())

	start := time.Now()
	_, err = r.Quote("ABC.EXCH", poll.Always, time.Hour)
	require.True(t, errors.As(err, &nd))
	assert.True(t, nd.Repeated)
	assert.Less(t, time.Since(start), time.Second)
}

func TestQuoteCancelled(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	_, err := r.Quote("ABC.EXCH", func() bool { return false }, time.Second)
	assert.ErrorIs(t, err, poll.ErrCancelled)
}

func TestNotifyHook(t *testing.T) {
	t.Parallel()

	var seen []string
	r := NewRegistry(&fakeSubscriber{}, nil, WithNotify(func(s *Symbol) { seen = append(seen, s.Key()) }))
	_, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)
	r.ApplyBid(bid(1, 1))
	assert.Equal(t, []string{"ABC.EXCH"}, seen)
}

func TestConcurrentTopReadsAreWhole(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	s, err := r.Subscribe("ABC.EXCH")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(1); i <= 1000; i++ {
				n := base*10000 + i
				r.ApplyBidAsk(bid(float64(n), n), ask(float64(n)+1, n))
			}
		}(int64(w))
	}

	bad := 0
	for i := 0; i < 5000; i++ {
		top := s.Top()
		if math.IsNaN(top.BidPrice) {
			continue
		}
		if top.BidPrice != float64(top.BidQty) || top.AskPrice != top.BidPrice+1 || top.AskQty != top.BidQty {
			bad++
		}
	}
	wg.Wait()
	assert.Zero(t, bad)
}
