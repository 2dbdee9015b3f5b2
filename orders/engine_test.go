package orders

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

type fakeGateway struct {
	mu       sync.Mutex
	sent     []gateway.OrderParams
	cancels  []string
	replays  []string
	contexts map[string]gateway.Context

	sendErr   error
	cancelErr error

	onSend   func(gateway.OrderParams)
	onCancel func(num string, ctx gateway.Context)
	onReplay func(num string, ctx gateway.Context)
}

func (f *fakeGateway) SendOrder(p gateway.OrderParams) error {
	f.mu.Lock()
	f.sent = append(f.sent, p)
	err, hook := f.sendErr, f.onSend
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(p)
	}
	return nil
}

func (f *fakeGateway) CancelOrder(acct gateway.Account, num string, ctx gateway.Context) error {
	f.mu.Lock()
	f.cancels = append(f.cancels, num)
	err, hook := f.cancelErr, f.onCancel
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(num, ctx)
	}
	return nil
}

func (f *fakeGateway) ReplaySingleOrder(acct gateway.Account, num string, ctx gateway.Context) error {
	f.mu.Lock()
	f.replays = append(f.replays, num)
	hook := f.onReplay
	f.mu.Unlock()
	if hook != nil {
		hook(num, ctx)
	}
	return nil
}

func (f *fakeGateway) SetOrderContext(num string, ctx gateway.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contexts == nil {
		f.contexts = map[string]gateway.Context{}
	}
	f.contexts[num] = ctx
	return nil
}

func (f *fakeGateway) cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancels...)
}

func newTestEngine(t *testing.T, capacity int) (*Engine, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	e := NewEngine(gw, Options{Capacity: capacity, Pid: 7})
	e.SetAccount(gateway.Account{FcmID: "F", IbID: "I", AccountID: "A1"})
	return e, gw
}

var es = market.Instrument{Ticker: "ESZ6", Exchange: "CME"}

func limitBuy(qty int64, price float64, d gateway.Duration) Request {
	return Request{Instrument: es, Side: market.Buy, Qty: qty, Price: price, TriggerPrice: math.NaN(), Duration: d, Route: "globex"}
}

// line builds the live line update the gateway would send for p.
func line(p gateway.OrderParams, num, status string, filled int64, avg float64) gateway.LineUpdate {
	return gateway.LineUpdate{
		Origin:          gateway.Live,
		Context:         p.Context,
		Tag:             p.Tag,
		Exchange:        p.Exchange,
		Ticker:          p.Ticker,
		OrderNum:        num,
		BuySell:         p.BuySell,
		OrderType:       p.Type,
		Duration:        p.Duration,
		TradeRoute:      p.TradeRoute,
		Status:          status,
		Price:           p.Price,
		HasPrice:        !math.IsNaN(p.Price),
		AvgFillPrice:    avg,
		HasAvgFillPrice: filled > 0,
		QuantityToFill:  p.Qty,
		Filled:          filled,
		Ssboe:           1_700_000_000,
	}
}

func TestTagRoundTrip(t *testing.T) {
	t.Parallel()

	cid := ClientOrderID(1234, 56)
	assert.Equal(t, uint64(1234)<<32|56, cid)
	got, ok := ParseTag(Tag(cid))
	require.True(t, ok)
	assert.Equal(t, cid, got)

	for _, bad := range []string{"", "OTHER_12", "ZORRO_", "ZORRO_x1"} {
		_, ok := ParseTag(bad)
		assert.False(t, ok, bad)
	}
}

func TestRequestType(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	tests := []struct {
		name    string
		price   float64
		trigger float64
		want    gateway.OrderType
	}{
		{"market", nan, nan, gateway.OrderMarket},
		{"stop market", nan, 99, gateway.OrderStopMarket},
		{"limit", 100, nan, gateway.OrderLimit},
		{"stop limit", 100, 99, gateway.OrderStopLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Request{Price: tt.price, TriggerPrice: tt.trigger}.Type())
		})
	}
}

func TestSendLimitFilled(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onSend = func(p gateway.OrderParams) {
		l := line(p, "1001", gateway.LineComplete, 5, 100.0)
		l.CompletionReason = gateway.CompletionFill
		e.ApplyLine(l)
	}

	res, err := e.Send(limitBuy(5, 100.0, gateway.DurationIOC), poll.Always, time.Second)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.False(t, res.TimedOut)
	assert.Equal(t, uint64(5), res.Order.ExecQty)
	assert.Equal(t, 100.0, res.Order.AvgFillPrice)
	assert.Equal(t, uint32(1001), res.Order.OrderNum)
	assert.Equal(t, ClientOrderID(7, 0), res.Order.ClientOrderID)
	assert.Equal(t, Filled, res.Order.State())
	assert.Zero(t, e.Pending())

	require.Len(t, gw.sent, 1)
	p := gw.sent[0]
	assert.Equal(t, gateway.OrderLimit, p.Type)
	assert.Equal(t, gateway.DurationIOC, p.Duration)
	assert.Equal(t, "ZORRO_"+"30064771072", p.Tag)
	assert.Equal(t, "A1", p.Account.AccountID)

	got, ok := e.Get(1001)
	require.True(t, ok)
	assert.Equal(t, res.Order.Slot, got.Slot)
}

func TestSendMarketForcesDay(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onSend = func(p gateway.OrderParams) {
		l := line(p, "5", gateway.LineComplete, 2, 4500.25)
		l.CompletionReason = gateway.CompletionFill
		e.ApplyLine(l)
	}

	req := Request{Instrument: es, Side: market.Sell, Qty: 2, Price: math.NaN(), TriggerPrice: math.NaN(), Duration: gateway.DurationFOK}
	res, err := e.Send(req, poll.Always, time.Second)
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	p := gw.sent[0]
	assert.Equal(t, gateway.OrderMarket, p.Type)
	assert.Equal(t, gateway.DurationDay, p.Duration)
	assert.Equal(t, gateway.Sell, p.BuySell)
	assert.True(t, math.IsNaN(p.Price))
}

func TestSendDayLimitRestingReturnsOnOpen(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onSend = func(p gateway.OrderParams) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			e.ApplyLine(line(p, "42", gateway.LineOpen, 0, 0))
		}()
	}

	res, err := e.Send(limitBuy(1, 99, gateway.DurationDay), poll.Always, time.Second)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Equal(t, Acknowledged, res.Order.State())
	assert.Equal(t, gateway.LineOpen, res.Order.Status)
}

func TestSendSyncRejection(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.sendErr = gateway.Reject("sendOrder", gateway.CodeBadParams)

	res, err := e.Send(limitBuy(1, 99, gateway.DurationDay), poll.Always, time.Second)
	require.Error(t, err)
	assert.Nil(t, res.Order)
	assert.Equal(t, gateway.CodeBadParams, gateway.Code(err))
	assert.Zero(t, e.Pending())
}

func TestSendRejectedReport(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onSend = func(p gateway.OrderParams) {
		e.ApplyReport(gateway.Report{Kind: gateway.ReportReject, Context: p.Context, Tag: p.Tag, Text: "price out of band"})
	}

	res, err := e.Send(limitBuy(1, 99, gateway.DurationDay), poll.Always, time.Second)
	require.NoError(t, err)
	assert.Nil(t, res.Order)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "Order Rejected: price out of band", res.Text)
	assert.Equal(t, Rejected, e.Orders()[0].State())
}

func TestSendCompletedWithoutFill(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onSend = func(p gateway.OrderParams) {
		l := line(p, "9", gateway.LineComplete, 0, 0)
		l.CompletionReason = gateway.CompletionCancel
		e.ApplyLine(l)
	}

	res, err := e.Send(limitBuy(1, 99, gateway.DurationIOC), poll.Always, time.Second)
	require.NoError(t, err)
	assert.Nil(t, res.Order)
	assert.False(t, res.TimedOut)
}

func TestSendTimeoutDefersCancel(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	var params gateway.OrderParams
	gw.onSend = func(p gateway.OrderParams) { params = p }

	res, err := e.Send(limitBuy(1, 99, gateway.DurationDay), poll.Always, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Nil(t, res.Order)
	assert.Zero(t, e.Pending())
	assert.Empty(t, gw.cancelled())
	assert.True(t, e.Orders()[0].PendingCancel)

	// the late acknowledgement triggers the deferred cancel
	o, applied := e.ApplyLine(line(params, "77", gateway.LineOpen, 0, 0))
	assert.False(t, applied)
	assert.False(t, o.PendingCancel)
	assert.Equal(t, []string{"77"}, gw.cancelled())
	assert.False(t, e.Orders()[0].PendingCancel)
}

func TestSendZeroWaitTimesOut(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	done := make(chan Result, 1)
	go func() {
		res, err := e.Send(limitBuy(1, 100, gateway.DurationIOC), poll.Always, 0)
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case res := <-done:
		assert.True(t, res.TimedOut)
	case <-time.After(time.Second):
		t.Fatal("send with zero wait did not return")
	}
	assert.Zero(t, e.Pending())
	assert.Empty(t, gw.cancelled())
	assert.True(t, e.Orders()[0].PendingCancel)
}

func TestSendTimeoutCancelsKnownOrder(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	// IOC limit stays pending on an open line, so the wait runs out
	gw.onSend = func(p gateway.OrderParams) {
		e.ApplyLine(line(p, "88", gateway.LineOpen, 0, 0))
	}

	res, err := e.Send(limitBuy(1, 99, gateway.DurationIOC), poll.Always, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, []string{"88"}, gw.cancelled())
}

func TestSendTimeoutMarketDoesNotCancel(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	req := Request{Instrument: es, Side: market.Buy, Qty: 1, Price: math.NaN(), TriggerPrice: math.NaN()}
	res, err := e.Send(req, poll.Always, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Empty(t, gw.cancelled())
	assert.False(t, e.Orders()[0].PendingCancel)
}

func TestSendCancelReportBeforeCompletingLine(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onSend = func(p gateway.OrderParams) {
		e.ApplyLine(line(p, "31", gateway.LineOpen, 0, 0))
		e.ApplyReport(gateway.Report{Kind: gateway.ReportCancel, Origin: gateway.Live, Context: p.Context, Tag: p.Tag,
			OrderNum: "31", Ssboe: 1_700_000_001})
	}

	res, err := e.Send(limitBuy(1, 99, gateway.DurationIOC), poll.Always, time.Second)
	require.NoError(t, err)
	assert.Nil(t, res.Order)
	assert.False(t, res.TimedOut)
	assert.Equal(t, Cancelled, e.Orders()[0].State())
}

func TestSendHostCancels(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, 16)
	_, err := e.Send(limitBuy(1, 99, gateway.DurationDay), func() bool { return false }, time.Second)
	assert.ErrorIs(t, err, poll.ErrCancelled)
	assert.Zero(t, e.Pending())
}

func TestArenaExhausted(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 1)
	gw.onSend = func(p gateway.OrderParams) {
		l := line(p, "1", gateway.LineComplete, 1, 99)
		l.CompletionReason = gateway.CompletionFill
		e.ApplyLine(l)
	}
	_, err := e.Send(limitBuy(1, 99, gateway.DurationIOC), poll.Always, time.Second)
	require.NoError(t, err)

	_, err = e.Send(limitBuy(1, 99, gateway.DurationIOC), poll.Always, time.Second)
	assert.ErrorIs(t, err, ErrArenaExhausted)
	assert.Len(t, gw.sent, 1)
	assert.Equal(t, 1, e.Allocated())
}

func TestForeignEventsNeverMutate(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	var params gateway.OrderParams
	gw.onSend = func(p gateway.OrderParams) {
		params = p
		e.ApplyLine(line(p, "10", gateway.LineOpen, 0, 0))
	}
	_, err := e.Send(limitBuy(3, 99, gateway.DurationDay), poll.Always, time.Second)
	require.NoError(t, err)
	before := e.Orders()[0]

	foreign := line(params, "10", gateway.LineOpen, 3, 98)
	foreign.Tag = "OTHERAPP_1"
	_, ok := e.ApplyLine(foreign)
	assert.False(t, ok)

	mismatch := line(params, "10", gateway.LineOpen, 3, 98)
	mismatch.Tag = Tag(ClientOrderID(7, 5))
	_, ok = e.ApplyLine(mismatch)
	assert.False(t, ok)

	other := NewEngine(gw, Options{Capacity: 4, Pid: 7})
	wrongCtx := line(params, "10", gateway.LineOpen, 3, 98)
	wrongCtx.Context = other.context(0)
	_, ok = e.ApplyLine(wrongCtx)
	assert.False(t, ok)

	outside := line(params, "10", gateway.LineOpen, 3, 98)
	outside.Context = e.context(9)
	_, ok = e.ApplyLine(outside)
	assert.False(t, ok)

	report := gateway.Report{Kind: gateway.ReportFill, Context: params.Context, Tag: "OTHERAPP_1", TotalFilled: 3}
	_, ok = e.ApplyReport(report)
	assert.False(t, ok)

	after := e.Orders()[0]
	assert.Equal(t, before.LastUpdate, after.LastUpdate)
	assert.Equal(t, before.ExecQty, after.ExecQty)
	assert.Zero(t, after.ExecQty)
	assert.True(t, math.IsNaN(after.AvgFillPrice))
}

func TestStaleAndIntermediateLinesIgnored(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	var params gateway.OrderParams
	gw.onSend = func(p gateway.OrderParams) {
		params = p
		l := line(p, "11", gateway.LineOpen, 1, 99)
		l.Ssboe = 1_700_000_200
		e.ApplyLine(l)
	}
	_, err := e.Send(limitBuy(3, 99, gateway.DurationDay), poll.Always, time.Second)
	require.NoError(t, err)

	old := line(params, "11", gateway.LineOpen, 0, 0)
	old.Ssboe = 1_700_000_100
	_, ok := e.ApplyLine(old)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), e.Orders()[0].ExecQty)

	zero := line(params, "11", gateway.LineOpen, 3, 99)
	zero.QuantityToFill = 0
	zero.Ssboe = 1_700_000_300
	_, ok = e.ApplyLine(zero)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), e.Orders()[0].ExecQty)
}

func TestStaleReportIgnored(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	var params gateway.OrderParams
	gw.onSend = func(p gateway.OrderParams) {
		params = p
		e.ApplyLine(line(p, "13", gateway.LineOpen, 0, 0))
	}
	_, err := e.Send(limitBuy(6, 99, gateway.DurationDay), poll.Always, time.Second)
	require.NoError(t, err)

	newer := line(params, "13", gateway.LineOpen, 5, 98.5)
	newer.Ssboe = 1_700_000_010
	_, ok := e.ApplyLine(newer)
	require.True(t, ok)

	late := gateway.Report{Kind: gateway.ReportFill, Origin: gateway.Live, Context: params.Context, Tag: params.Tag,
		AvgFillPrice: 99, HasAvgFillPrice: true, FillSize: 3, TotalFilled: 3, Ssboe: 1_700_000_005}
	o, ok := e.ApplyReport(late)
	assert.False(t, ok)
	assert.Equal(t, uint64(5), o.ExecQty)
	assert.Equal(t, 98.5, o.AvgFillPrice)

	o = e.Orders()[0]
	assert.Equal(t, uint64(5), o.ExecQty)
	assert.Equal(t, gateway.Stamp(1_700_000_010, 0), o.LastUpdate)

	// same stamp as the last line still applies
	late.Ssboe, late.TotalFilled, late.FillSize = 1_700_000_010, 6, 1
	o, ok = e.ApplyReport(late)
	require.True(t, ok)
	assert.Equal(t, uint64(6), o.ExecQty)
}

func TestFillAndBustReports(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	var params gateway.OrderParams
	gw.onSend = func(p gateway.OrderParams) {
		params = p
		e.ApplyLine(line(p, "12", gateway.LineOpen, 0, 0))
	}
	_, err := e.Send(limitBuy(4, 99, gateway.DurationDay), poll.Always, time.Second)
	require.NoError(t, err)

	o, ok := e.ApplyReport(gateway.Report{Kind: gateway.ReportFill, Context: params.Context, Tag: params.Tag,
		FillPrice: 98.75, HasFillPrice: true, AvgFillPrice: 98.8, HasAvgFillPrice: true, FillSize: 3, TotalFilled: 3,
		Ssboe: 1_700_000_001})
	require.True(t, ok)
	assert.Equal(t, 98.75, o.LastFillPrice)
	assert.Equal(t, 98.8, o.AvgFillPrice)
	assert.Equal(t, uint64(3), o.LastFillQty)
	assert.Equal(t, PartiallyFilled, o.State())

	// history fills are not applied
	_, ok = e.ApplyReport(gateway.Report{Kind: gateway.ReportFill, Origin: gateway.History, Context: params.Context, Tag: params.Tag, TotalFilled: 4})
	assert.False(t, ok)

	o, ok = e.ApplyReport(gateway.Report{Kind: gateway.ReportBust, Context: params.Context, Tag: params.Tag, Ssboe: 1_700_000_002})
	require.True(t, ok)
	assert.Equal(t, Failed, o.State())

	_, ok = e.ApplyReport(gateway.Report{Kind: gateway.ReportStatus, Context: params.Context, Tag: params.Tag})
	assert.False(t, ok)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onSend = func(p gateway.OrderParams) {
		e.ApplyLine(line(p, "20", gateway.LineOpen, 0, 0))
	}
	gw.onCancel = func(num string, ctx gateway.Context) {
		o, _ := e.Get(20)
		go e.ApplyReport(gateway.Report{Kind: gateway.ReportCancel, Context: ctx, Tag: o.Tag, OrderNum: num, Ssboe: 1_700_000_001})
	}

	_, err := e.Cancel(20, poll.Always)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = e.Send(limitBuy(1, 99, gateway.DurationGTC), poll.Always, time.Second)
	require.NoError(t, err)

	o, err := e.Cancel(20, poll.Always)
	require.NoError(t, err)
	assert.True(t, o.Cancelled)
	assert.Equal(t, Cancelled, o.State())

	// already cancelled: no second request
	_, err = e.Cancel(20, poll.Always)
	require.NoError(t, err)
	assert.Equal(t, []string{"20"}, gw.cancelled())
}

func TestCancelRejected(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onSend = func(p gateway.OrderParams) {
		e.ApplyLine(line(p, "21", gateway.LineOpen, 0, 0))
	}
	_, err := e.Send(limitBuy(1, 99, gateway.DurationGTC), poll.Always, time.Second)
	require.NoError(t, err)

	gw.cancelErr = errors.New("engine not ready")
	_, err = e.Cancel(21, poll.Always)
	require.Error(t, err)
	assert.Zero(t, e.Pending())
}

func TestRetrieve(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	cid := ClientOrderID(99, 3)
	gw.onReplay = func(num string, ctx gateway.Context) {
		go func() {
			e.ApplyLine(gateway.LineUpdate{
				Origin: gateway.History, Context: ctx, Tag: Tag(cid), Exchange: "CME", Ticker: "ESZ6",
				OrderNum: num, BuySell: gateway.Sell, OrderType: gateway.OrderLimit, Duration: gateway.DurationGTC,
				Status: gateway.LineComplete, CompletionReason: gateway.CompletionFill,
				QuantityToFill: 2, Filled: 2, AvgFillPrice: 4500, HasAvgFillPrice: true, Ssboe: 1_700_000_000,
			})
			e.ApplySingleReplay(gateway.SingleOrderReplay{OrderNum: num, Context: ctx})
		}()
	}

	o, err := e.Retrieve(555, poll.Always)
	require.NoError(t, err)
	assert.Equal(t, cid, o.ClientOrderID)
	assert.Equal(t, uint32(555), o.OrderNum)
	assert.Equal(t, market.Sell, o.Side)
	assert.Equal(t, "ESZ6.CME", o.Instrument.Symbol())
	assert.Contains(t, gw.contexts, "555")

	// now indexed, no second replay
	_, err = e.Retrieve(555, poll.Always)
	require.NoError(t, err)
	assert.Equal(t, []string{"555"}, gw.replays)
}

func TestRetrieveNotFound(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onReplay = func(num string, ctx gateway.Context) {
		go e.ApplySingleReplay(gateway.SingleOrderReplay{OrderNum: num, RpCode: 7})
	}
	_, err := e.Retrieve(556, poll.Always)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestIngestOpenOrders(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	replay := gateway.OpenOrderReplay{Lines: []gateway.LineUpdate{
		{Tag: "manual", OrderNum: "1", QuantityToFill: 1},
		{Tag: Tag(ClientOrderID(50, 1)), OrderNum: "300", Exchange: "CME", Ticker: "ESZ6", BuySell: gateway.Buy,
			OrderType: gateway.OrderLimit, Duration: gateway.DurationGTC, Price: 4400, HasPrice: true, QuantityToFill: 3, Filled: 1},
		{Tag: Tag(ClientOrderID(50, 2)), OrderNum: "301", Exchange: "CME", Ticker: "NQZ6", BuySell: gateway.Sell,
			OrderType: gateway.OrderStopMarket, Duration: gateway.DurationDay, TriggerPrice: 19000, HasTriggerPrice: true, QuantityToFill: 1},
	}}

	n, err := e.IngestOpenOrders(replay)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, gw.contexts, 2)

	_, ok := e.Get(300)
	assert.False(t, ok, "not indexed before IndexAll")
	assert.Equal(t, 2, e.IndexAll())

	o, ok := e.Get(300)
	require.True(t, ok)
	assert.Equal(t, 4400.0, o.Price)
	assert.Equal(t, uint64(1), o.ExecQty)
	assert.True(t, math.IsNaN(o.TriggerPrice))

	o, ok = e.Get(301)
	require.True(t, ok)
	assert.Equal(t, 19000.0, o.TriggerPrice)
	assert.Equal(t, market.Sell, o.Side)
	assert.Equal(t, gw.contexts["301"], e.context(o.Slot))
}

func TestHistoryLineKeepsClientOrderID(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, 16)
	owned := Tag(ClientOrderID(7, 99))
	n, err := e.IngestOpenOrders(gateway.OpenOrderReplay{Lines: []gateway.LineUpdate{
		{Tag: owned, OrderNum: "400", Exchange: "CME", Ticker: "ESZ6", BuySell: gateway.Buy,
			OrderType: gateway.OrderLimit, Duration: gateway.DurationGTC, Price: 4400, HasPrice: true,
			QuantityToFill: 2, Status: gateway.LineOpen, Ssboe: 1_700_000_000},
	}})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	before := e.Orders()[0]

	other := gateway.LineUpdate{
		Origin: gateway.History, Context: e.context(before.Slot), Tag: Tag(ClientOrderID(7, 12345)),
		Exchange: "CME", Ticker: "ESZ6", OrderNum: "400", BuySell: gateway.Buy, OrderType: gateway.OrderLimit,
		Duration: gateway.DurationGTC, Status: gateway.LineComplete, CompletionReason: gateway.CompletionFill,
		QuantityToFill: 2, Filled: 2, Ssboe: 1_700_000_100,
	}
	_, ok := e.ApplyLine(other)
	assert.False(t, ok)

	after := e.Orders()[0]
	assert.Equal(t, before.ClientOrderID, after.ClientOrderID)
	assert.Equal(t, before.ExecQty, after.ExecQty)
	assert.Equal(t, before.LastUpdate, after.LastUpdate)
	assert.Equal(t, owned, after.Tag)

	// the owner's own history line still applies
	other.Tag = owned
	o, ok := e.ApplyLine(other)
	require.True(t, ok)
	assert.Equal(t, uint64(2), o.ExecQty)
	assert.Equal(t, Filled, o.State())
}

func TestLineErrorClearsPending(t *testing.T) {
	t.Parallel()

	e, gw := newTestEngine(t, 16)
	gw.onSend = func(p gateway.OrderParams) {
		e.ApplyLine(gateway.LineUpdate{Tag: p.Tag, Context: p.Context, RpCode: 3, Text: "bad route"})
	}
	res, err := e.Send(limitBuy(1, 99, gateway.DurationDay), poll.Always, time.Second)
	require.NoError(t, err)
	assert.Nil(t, res.Order)
	assert.False(t, res.TimedOut)
}
