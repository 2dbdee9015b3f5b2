// Package orders is the order lifecycle engine: it submits, cancels and
// retrieves orders and folds gateway line updates and reports into per-order
// snapshots.
//
// Orders live in an arena of slots that are never reused. The slot index is
// part of the client order id and of the correlation context handed to the
// gateway, so callbacks map back to a slot without a content lookup. Exchange
// order numbers are indexed once known.
package orders

import (
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/metrics"
	"github.com/rustyeddy/futbridge/poll"
	"github.com/rustyeddy/futbridge/snapshot"
)

var (
	ErrArenaExhausted = errors.New("order arena exhausted")
	ErrOrderNotFound  = errors.New("order not found")
)

// Gateway is the part of the vendor engine the order engine talks to.
type Gateway interface {
	SendOrder(gateway.OrderParams) error
	CancelOrder(acct gateway.Account, orderNum string, ctx gateway.Context) error
	ReplaySingleOrder(acct gateway.Account, orderNum string, ctx gateway.Context) error
	SetOrderContext(orderNum string, ctx gateway.Context) error
}

type Options struct {
	// Capacity bounds the arena; zero means MaxOrders.
	Capacity int
	// Pid goes into the high half of client order ids; zero means os.Getpid().
	Pid    uint64
	Logger *zap.Logger
}

var generations atomic.Uint32

type Engine struct {
	gw  Gateway
	log *zap.Logger
	pid uint64
	gen uint32

	slots []snapshot.Value[Order]
	next  atomic.Uint32
	byNum sync.Map // exchange order number -> slot

	// pending holds the token of the request the host thread is waiting
	// for: a client order id for submits and cancels, an exchange order
	// number for single order replays. Callbacks clear it.
	pending atomic.Uint64

	account snapshot.Value[gateway.Account]
}

func NewEngine(gw Gateway, opts Options) *Engine {
	if opts.Capacity <= 0 {
		opts.Capacity = MaxOrders
	}
	if opts.Pid == 0 {
		opts.Pid = uint64(os.Getpid())
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		gw:    gw,
		log:   opts.Logger,
		pid:   opts.Pid,
		gen:   generations.Add(1),
		slots: make([]snapshot.Value[Order], opts.Capacity),
	}
}

func (e *Engine) SetAccount(a gateway.Account) { e.account.Store(a) }

func (e *Engine) Account() gateway.Account { return e.account.Load() }

// Pending returns the token of the request currently awaited, or 0.
func (e *Engine) Pending() uint64 { return e.pending.Load() }

// Allocated returns the number of slots handed out.
func (e *Engine) Allocated() int {
	return min(int(e.next.Load()), len(e.slots))
}

func (e *Engine) allocate() (uint32, error) {
	i := e.next.Add(1) - 1
	if int(i) >= len(e.slots) {
		e.log.Error("order arena exhausted", zap.Int("capacity", len(e.slots)))
		return 0, ErrArenaExhausted
	}
	metrics.OrderSlots.Inc()
	return i, nil
}

func (e *Engine) context(slot uint32) gateway.Context {
	return gateway.Context(uint64(e.gen)<<32 | uint64(slot+1))
}

// resolve maps a callback context back to an allocated slot of this engine.
func (e *Engine) resolve(ctx gateway.Context) (uint32, bool) {
	if uint32(ctx>>32) != e.gen || uint32(ctx) == 0 {
		return 0, false
	}
	slot := uint32(ctx) - 1
	if slot >= e.next.Load() || int(slot) >= len(e.slots) {
		return 0, false
	}
	return slot, true
}

func (e *Engine) clientID(slot uint32) uint64 {
	return ClientOrderID(e.pid, slot)
}

func (e *Engine) index(o Order) {
	if o.OrderNum != 0 {
		e.byNum.Store(o.OrderNum, o.Slot)
	}
}

// IndexAll indexes every allocated slot that has an exchange order number.
func (e *Engine) IndexAll() int {
	n := 0
	for i := 0; i < e.Allocated(); i++ {
		o := e.slots[i].Load()
		if o.OrderNum != 0 {
			e.index(o)
			n++
		}
	}
	return n
}

// Get returns the order indexed under an exchange order number.
func (e *Engine) Get(orderNum uint32) (Order, bool) {
	v, ok := e.byNum.Load(orderNum)
	if !ok {
		return Order{}, false
	}
	return e.slots[v.(uint32)].Load(), true
}

// Orders returns a snapshot of every published slot.
func (e *Engine) Orders() []Order {
	n := e.Allocated()
	out := make([]Order, 0, n)
	for i := 0; i < n; i++ {
		if e.slots[i].Loaded() {
			out = append(out, e.slots[i].Load())
		}
	}
	return out
}

func ignored(kind, reason string) {
	metrics.Ignored.WithLabelValues(kind, reason).Inc()
}

// Send submits req and blocks until the order is acknowledged, fails, the host
// cancels or wait elapses. A wait of zero or less times out at once. A timed
// out order with a limit price is cancelled, right away if its exchange
// number is known or as soon as it is.
func (e *Engine) Send(req Request, progress poll.Progress, wait time.Duration) (Result, error) {
	typ := req.Type()
	dur := req.Duration
	price := req.Price
	if typ == gateway.OrderMarket || typ == gateway.OrderStopMarket {
		dur = gateway.DurationDay
		price = math.NaN()
	}

	slot, err := e.allocate()
	if err != nil {
		return Result{}, err
	}
	cid := e.clientID(slot)
	ctx := e.context(slot)

	o := emptyOrder(slot)
	o.ClientOrderID = cid
	o.Tag = Tag(cid)
	o.UserMsg = req.UserMsg
	o.Instrument = req.Instrument
	o.Side = req.Side
	o.OrderType = typ
	o.Duration = dur
	o.TradeRoute = req.Route
	o.Price = price
	o.TriggerPrice = req.TriggerPrice
	o.Qty = uint64(req.Qty)
	e.slots[slot].Store(o)

	params := gateway.OrderParams{
		Account:      e.Account(),
		Type:         typ,
		Exchange:     req.Instrument.Exchange,
		Ticker:       req.Instrument.Ticker,
		BuySell:      buySell(req.Side),
		Qty:          req.Qty,
		Price:        price,
		TriggerPrice: req.TriggerPrice,
		Duration:     dur,
		TradeRoute:   req.Route,
		Tag:          o.Tag,
		UserMsg:      req.UserMsg,
		Context:      ctx,
	}

	metrics.OrdersSubmitted.WithLabelValues(string(typ)).Inc()
	e.pending.Store(cid)
	start := time.Now()
	if err := e.gw.SendOrder(params); err != nil {
		e.pending.CompareAndSwap(cid, 0)
		metrics.OrderOutcomes.WithLabelValues("send", "rejected").Inc()
		return Result{}, errors.WithMessagef(err, "send order %s", req.Instrument)
	}
	e.log.Debug("order sent", zap.Uint64("client_order_id", cid), zap.String("symbol", req.Instrument.Symbol()),
		zap.String("type", string(typ)), zap.String("duration", string(dur)), zap.Int64("qty", req.Qty))

	out := poll.Within(progress, wait, func() bool { return e.pending.Load() != cid })
	metrics.ObserveWait("send_order", start)
	switch out {
	case poll.Cancelled:
		e.pending.CompareAndSwap(cid, 0)
		metrics.OrderOutcomes.WithLabelValues("send", "cancelled").Inc()
		return Result{}, poll.ErrCancelled
	case poll.TimedOut:
		if !math.IsNaN(price) {
			e.cancelAfterTimeout(slot)
		}
		e.pending.CompareAndSwap(cid, 0)
		metrics.OrderOutcomes.WithLabelValues("send", "timeout").Inc()
		e.log.Warn("order timed out", zap.Uint64("client_order_id", cid), zap.Duration("wait", wait))
		return Result{TimedOut: true}, nil
	}

	cur := e.slots[slot].Load()
	res := Result{Text: cur.Text}
	if cur.OrderNum == 0 {
		metrics.OrderOutcomes.WithLabelValues("send", "unacknowledged").Inc()
		return res, nil
	}
	if r := cur.CompletionReason; r != "" && r != gateway.CompletionFill && r != gateway.CompletionPartialFill {
		metrics.OrderOutcomes.WithLabelValues("send", r).Inc()
		return res, nil
	}
	// a terminal report can clear the wait before its completing line lands
	if cur.Cancelled || cur.Rejected || cur.Failed {
		metrics.OrderOutcomes.WithLabelValues("send", cur.State().String()).Inc()
		return res, nil
	}
	e.index(cur)
	metrics.OrderOutcomes.WithLabelValues("send", "acknowledged").Inc()
	res.Order = &cur
	return res, nil
}

func (e *Engine) cancelAfterTimeout(slot uint32) {
	cur, marked := e.slots[slot].Update(func(o Order) (Order, bool) {
		if o.OrderNum != 0 {
			return o, false
		}
		o.PendingCancel = true
		return o, true
	})
	if marked {
		e.log.Info("cancel deferred until acknowledgement", zap.Uint64("client_order_id", cur.ClientOrderID))
		return
	}
	e.issueCancel(cur)
}

func (e *Engine) issueCancel(o Order) {
	if err := e.gw.CancelOrder(e.Account(), formatOrderNum(o.OrderNum), e.context(o.Slot)); err != nil {
		e.log.Error("cancel request rejected", zap.Uint32("order_num", o.OrderNum), zap.Error(err))
		return
	}
	e.log.Info("cancel requested", zap.Uint32("order_num", o.OrderNum))
}

// Cancel cancels an indexed order and blocks until the gateway confirms or
// the host cancels the wait. An already cancelled order succeeds at once.
func (e *Engine) Cancel(orderNum uint32, progress poll.Progress) (Order, error) {
	o, ok := e.Get(orderNum)
	if !ok {
		return Order{}, errors.WithMessagef(ErrOrderNotFound, "order %d", orderNum)
	}
	if o.Cancelled {
		return o, nil
	}

	cid := o.ClientOrderID
	e.pending.Store(cid)
	start := time.Now()
	if err := e.gw.CancelOrder(e.Account(), formatOrderNum(orderNum), e.context(o.Slot)); err != nil {
		e.pending.CompareAndSwap(cid, 0)
		metrics.OrderOutcomes.WithLabelValues("cancel", "rejected").Inc()
		return o, errors.WithMessagef(err, "cancel order %d", orderNum)
	}
	out := poll.Until(progress, 0, func() bool { return e.pending.Load() != cid })
	metrics.ObserveWait("cancel_order", start)
	if out == poll.Cancelled {
		e.pending.CompareAndSwap(cid, 0)
		return o, poll.ErrCancelled
	}
	metrics.OrderOutcomes.WithLabelValues("cancel", "done").Inc()
	return e.slots[o.Slot].Load(), nil
}

// Retrieve returns an order by exchange number, replaying it from the server
// when this process has never seen it.
func (e *Engine) Retrieve(orderNum uint32, progress poll.Progress) (Order, error) {
	if o, ok := e.Get(orderNum); ok {
		return o, nil
	}

	slot, err := e.allocate()
	if err != nil {
		return Order{}, err
	}
	o := emptyOrder(slot)
	o.OrderNum = orderNum
	e.slots[slot].Store(o)

	num := formatOrderNum(orderNum)
	ctx := e.context(slot)
	if err := e.gw.SetOrderContext(num, ctx); err != nil {
		return Order{}, errors.WithMessagef(err, "attach order %d", orderNum)
	}

	token := uint64(orderNum)
	e.pending.Store(token)
	start := time.Now()
	if err := e.gw.ReplaySingleOrder(e.Account(), num, ctx); err != nil {
		e.pending.CompareAndSwap(token, 0)
		return Order{}, errors.WithMessagef(err, "replay order %d", orderNum)
	}
	out := poll.Until(progress, 0, func() bool { return e.pending.Load() != token })
	metrics.ObserveWait("retrieve_order", start)
	if out == poll.Cancelled {
		e.pending.CompareAndSwap(token, 0)
		return Order{}, poll.ErrCancelled
	}

	cur := e.slots[slot].Load()
	if cur.ClientOrderID == 0 {
		return Order{}, errors.WithMessagef(ErrOrderNotFound, "order %d", orderNum)
	}
	e.index(cur)
	return cur, nil
}

// IngestOpenOrders copies every bridge-owned line of an open order replay into
// fresh slots and attaches their contexts. Foreign lines are skipped.
func (e *Engine) IngestOpenOrders(r gateway.OpenOrderReplay) (int, error) {
	n := 0
	for _, l := range r.Lines {
		cid, ok := ParseTag(l.Tag)
		if !ok {
			ignored("open_order", "foreign")
			continue
		}
		slot, err := e.allocate()
		if err != nil {
			return n, err
		}

		o := emptyOrder(slot)
		o.ClientOrderID = cid
		o.Tag = l.Tag
		o.UserMsg = l.UserMsg
		o.OrderNum = parseOrderNum(l.OrderNum)
		o.Instrument.Exchange = l.Exchange
		o.Instrument.Ticker = l.Ticker
		o.Side = sideOf(l.BuySell)
		o.OrderType = l.OrderType
		o.OriginalOrderType = l.OriginalOrderType
		o.Duration = l.Duration
		o.TradeRoute = l.TradeRoute
		o.Status = l.Status
		o.ExchOrdID = l.ExchOrdID
		if l.HasPrice {
			o.Price = l.Price
		}
		if l.HasAvgFillPrice {
			o.AvgFillPrice = l.AvgFillPrice
		}
		if l.HasTriggerPrice {
			o.TriggerPrice = l.TriggerPrice
		}
		o.Qty = uint64(l.QuantityToFill)
		o.ExecQty = uint64(l.Filled)
		o.LastUpdate = gateway.Stamp(l.Ssboe, l.Usecs)
		e.slots[slot].Store(o)

		if err := e.gw.SetOrderContext(l.OrderNum, e.context(slot)); err != nil {
			e.log.Warn("attach context to open order", zap.String("order_num", l.OrderNum), zap.Error(err))
		}
		n++
	}
	return n, nil
}

func keepsResting(d gateway.Duration, t gateway.OrderType) bool {
	return (d == gateway.DurationDay || d == gateway.DurationGTC) &&
		t != gateway.OrderMarket && t != gateway.OrderStopMarket
}

// ApplyLine folds a line update into its slot. It returns the resulting
// snapshot and whether the update was applied.
func (e *Engine) ApplyLine(l gateway.LineUpdate) (Order, bool) {
	cid, ok := ParseTag(l.Tag)
	if !ok {
		ignored("line", "foreign")
		return Order{}, false
	}
	if l.RpCode != gateway.RpOK {
		e.log.Warn("line update error", zap.Int("rp_code", l.RpCode), zap.String("tag", l.Tag), zap.String("text", l.Text))
		if l.Origin == gateway.Live {
			e.pending.CompareAndSwap(cid, 0)
		}
		return Order{}, false
	}

	slot, ok := e.resolve(l.Context)
	if !ok {
		ignored("line", "context")
		return Order{}, false
	}
	if l.QuantityToFill == 0 {
		ignored("line", "intermediate")
		return Order{}, false
	}
	v := &e.slots[slot]
	if l.Origin == gateway.Live && v.Load().ClientOrderID != cid {
		ignored("line", "foreign")
		e.log.Debug("client order id mismatch", zap.Uint64("tag_id", cid), zap.Uint32("slot", slot))
		return Order{}, false
	}

	ts := gateway.Stamp(l.Ssboe, l.Usecs)
	num := parseOrderNum(l.OrderNum)
	var cancelNow, mismatch bool
	next, applied := v.Update(func(o Order) (Order, bool) {
		cancelNow, mismatch = false, false
		if o.LastUpdate > ts {
			return o, false
		}
		// a client order id is fixed once published
		if l.Origin == gateway.History && o.ClientOrderID != 0 && o.ClientOrderID != cid {
			mismatch = true
			return o, false
		}
		if o.PendingCancel {
			o.PendingCancel = false
			if o.OrderNum == 0 {
				o.OrderNum = num
			}
			cancelNow = true
			return o, true
		}

		if l.Origin == gateway.History {
			if o.Tag == "" {
				o.Instrument.Exchange = l.Exchange
				o.Instrument.Ticker = l.Ticker
				o.Tag = l.Tag
				o.ClientOrderID = cid
				o.UserMsg = l.UserMsg
			}
		} else {
			o.OrderNum = num
		}
		if o.Side == market.Unknown {
			o.Side = sideOf(l.BuySell)
		}
		if l.Duration != "" {
			o.Duration = l.Duration
		}
		if l.HasPrice {
			o.Price = l.Price
		}
		if l.HasAvgFillPrice {
			o.AvgFillPrice = l.AvgFillPrice
		}
		if l.HasTriggerPrice {
			o.TriggerPrice = l.TriggerPrice
		}
		o.Qty = uint64(l.QuantityToFill)
		o.ExecQty = uint64(l.Filled)
		o.ExchOrdID = l.ExchOrdID
		o.TickerPlantExchOrdID = l.TickerPlantExchOrdID
		o.OriginalOrderNum = l.OriginalOrderNum
		o.InitialSequence = l.InitialSequence
		o.CurrentSequence = l.CurrentSequence
		o.OmnibusAccount = l.OmnibusAccount
		o.TradeRoute = l.TradeRoute
		o.OrderType = l.OrderType
		o.OriginalOrderType = l.OriginalOrderType
		o.Status = l.Status
		o.CompletionReason = l.CompletionReason
		o.LastUpdate = ts
		return o, true
	})

	if cancelNow {
		e.issueCancel(next)
		return next, false
	}
	if mismatch {
		ignored("line", "foreign")
		e.log.Debug("client order id mismatch", zap.Uint64("tag_id", cid), zap.Uint32("slot", slot))
		return next, false
	}
	if !applied {
		ignored("line", "stale")
	}

	if l.Origin == gateway.Live &&
		(l.CompletionReason != "" || (applied && keepsResting(next.Duration, l.OrderType) && l.Status == gateway.LineOpen)) {
		e.pending.CompareAndSwap(cid, 0)
	}
	return next, applied
}

// ApplyReport folds an order report into its slot. Status, trigger, modify
// and similar reports are only logged.
func (e *Engine) ApplyReport(r gateway.Report) (Order, bool) {
	switch r.Kind {
	case gateway.ReportFill, gateway.ReportCancel, gateway.ReportFailure, gateway.ReportReject, gateway.ReportBust:
	default:
		e.log.Debug("order report", zap.Stringer("kind", r.Kind), zap.String("tag", r.Tag),
			zap.String("order_num", r.OrderNum), zap.String("text", r.Text))
		return Order{}, false
	}

	cid, ok := ParseTag(r.Tag)
	if !ok {
		ignored("report", "foreign")
		return Order{}, false
	}
	if r.Kind == gateway.ReportCancel {
		if r.Origin == gateway.History {
			return Order{}, false
		}
	} else if r.Origin != gateway.Live {
		return Order{}, false
	}

	slot, ok := e.resolve(r.Context)
	if !ok {
		ignored("report", "context")
		return Order{}, false
	}
	v := &e.slots[slot]
	if v.Load().ClientOrderID != cid {
		ignored("report", "foreign")
		return Order{}, false
	}

	ts := gateway.Stamp(r.Ssboe, r.Usecs)
	next, applied := v.Update(func(o Order) (Order, bool) {
		if o.LastUpdate > ts {
			return o, false
		}
		o.LastUpdate = ts
		switch r.Kind {
		case gateway.ReportFill:
			if r.HasAvgFillPrice {
				o.AvgFillPrice = r.AvgFillPrice
			}
			if r.HasFillPrice {
				o.LastFillPrice = r.FillPrice
			}
			o.LastFillQty = uint64(r.FillSize)
			o.ExecQty = uint64(r.TotalFilled)
		case gateway.ReportCancel:
			o.Cancelled = true
		case gateway.ReportFailure:
			o.Text = r.Text
			o.Failed = true
		case gateway.ReportReject:
			o.Text = "Order Rejected"
			if r.Text != "" {
				o.Text += ": " + r.Text
			}
			o.Rejected = true
		case gateway.ReportBust:
			o.Busted = true
		}
		return o, true
	})
	if !applied {
		ignored("report", "stale")
		return next, false
	}

	switch r.Kind {
	case gateway.ReportCancel, gateway.ReportFailure, gateway.ReportReject:
		e.pending.CompareAndSwap(cid, 0)
	}
	e.log.Debug("order report applied", zap.Stringer("kind", r.Kind), zap.Uint64("client_order_id", cid),
		zap.Stringer("state", next.State()))
	return next, true
}

// ApplySingleReplay ends a Retrieve wait.
func (e *Engine) ApplySingleReplay(r gateway.SingleOrderReplay) {
	if r.RpCode != gateway.RpOK {
		e.log.Warn("single order replay failed", zap.String("order_num", r.OrderNum), zap.Int("rp_code", r.RpCode))
	}
	token := uint64(parseOrderNum(r.OrderNum))
	if !e.pending.CompareAndSwap(token, 0) {
		e.log.Debug("unexpected single order replay", zap.String("order_num", r.OrderNum))
	}
}
