package sim

import (
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
)

type order struct {
	num       string
	p         gateway.OrderParams
	ctx       gateway.Context
	exchID    string
	filled    int64
	avg       float64
	status    string
	reason    string
	triggered bool
	ssboe     int
	usecs     int
}

func (o *order) open() bool { return o.status != gateway.LineComplete }

func (o *order) buy() bool { return o.p.BuySell == gateway.Buy }

func (o *order) line(origin gateway.Origin) gateway.LineUpdate {
	return gateway.LineUpdate{
		Origin:            origin,
		Context:           o.ctx,
		Account:           o.p.Account,
		Exchange:          o.p.Exchange,
		Ticker:            o.p.Ticker,
		OrderNum:          o.num,
		Tag:               o.p.Tag,
		UserMsg:           o.p.UserMsg,
		ExchOrdID:         o.exchID,
		BuySell:           o.p.BuySell,
		OrderType:         o.p.Type,
		OriginalOrderType: o.p.Type,
		Duration:          o.p.Duration,
		TradeRoute:        o.p.TradeRoute,
		Status:            o.status,
		CompletionReason:  o.reason,
		Price:             o.p.Price,
		HasPrice:          !math.IsNaN(o.p.Price),
		AvgFillPrice:      o.avg,
		HasAvgFillPrice:   o.filled > 0,
		TriggerPrice:      o.p.TriggerPrice,
		HasTriggerPrice:   !math.IsNaN(o.p.TriggerPrice),
		QuantityToFill:    o.p.Qty,
		Filled:            o.filled,
		Ssboe:             o.ssboe,
		Usecs:             o.usecs,
	}
}

func (o *order) report(kind gateway.ReportKind) gateway.Report {
	return gateway.Report{
		Kind:      kind,
		Origin:    gateway.Live,
		Context:   o.ctx,
		Exchange:  o.p.Exchange,
		Ticker:    o.p.Ticker,
		OrderNum:  o.num,
		Tag:       o.p.Tag,
		UserMsg:   o.p.UserMsg,
		ExchOrdID: o.exchID,
		Ssboe:     o.ssboe,
		Usecs:     o.usecs,
	}
}

func (e *Engine) touch(o *order) {
	o.ssboe, o.usecs = e.stamp()
}

func (e *Engine) emitLine(o *order) {
	l := o.line(gateway.Live)
	e.emit(func(h gateway.Handler) { h.LineUpdate(l) })
}

func (e *Engine) SendOrder(p gateway.OrderParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("send order"); err != nil {
		return err
	}
	if p.Qty <= 0 {
		return &gateway.Error{Op: "send order", Code: gateway.CodeBadParams, Text: "quantity must be positive"}
	}
	b, ok := e.books[p.Ticker+"."+p.Exchange]
	if !ok {
		return &gateway.Error{Op: "send order", Code: gateway.CodeBadParams, Text: "unknown instrument"}
	}
	if (p.Type == gateway.OrderLimit || p.Type == gateway.OrderStopLimit) && math.IsNaN(p.Price) {
		return &gateway.Error{Op: "send order", Code: gateway.CodeBadParams, Text: "limit order without price"}
	}

	o := &order{
		num:    strconv.FormatUint(uint64(e.nextNum), 10),
		p:      p,
		ctx:    p.Context,
		exchID: e.ids.New(e.opts.Clock()),
		status: gateway.LineOpen,
	}
	e.nextNum++
	e.orders[o.num] = o
	e.touch(o)
	e.emitLine(o)
	e.log.Debug("sim order", zap.String("order_num", o.num), zap.String("type", string(p.Type)),
		zap.String("side", string(p.BuySell)), zap.Int64("qty", p.Qty))

	if !math.IsNaN(p.Price) && !onTick(p.Price, b.in.Tick) {
		e.reject(o, "price not on tick")
		return nil
	}
	e.work(o, b)
	e.publishPnl()
	return nil
}

func onTick(price, tick float64) bool {
	if tick <= 0 {
		return true
	}
	n := price / tick
	return math.Abs(n-math.Round(n)) < 1e-6
}

// work fills, cancels or leaves o resting against the current top of book.
func (e *Engine) work(o *order, b *book) {
	if !o.open() {
		return
	}
	stop := o.p.Type == gateway.OrderStopMarket || o.p.Type == gateway.OrderStopLimit
	if stop && !o.triggered {
		if !stopTriggered(o, b) {
			return
		}
		o.triggered = true
		e.touch(o)
		r := o.report(gateway.ReportTrigger)
		e.emit(func(h gateway.Handler) { h.OrderReport(r) })
	}

	switch o.p.Type {
	case gateway.OrderMarket, gateway.OrderStopMarket:
		e.fill(o, b, touchPrice(o, b))
		return
	}
	if limitReached(o, b) {
		e.fill(o, b, touchPrice(o, b))
		return
	}
	if o.p.Duration == gateway.DurationIOC || o.p.Duration == gateway.DurationFOK {
		e.cancel(o)
	}
}

// touchPrice is where o trades against the book: buys lift the ask, sells
// hit the bid.
func touchPrice(o *order, b *book) float64 {
	if o.buy() {
		return b.ask
	}
	return b.bid
}

func limitReached(o *order, b *book) bool {
	if o.buy() {
		return o.p.Price >= b.ask
	}
	return o.p.Price <= b.bid
}

func stopTriggered(o *order, b *book) bool {
	if o.buy() {
		return b.ask >= o.p.TriggerPrice
	}
	return b.bid <= o.p.TriggerPrice
}

func (e *Engine) fill(o *order, b *book, price float64) {
	qty := o.p.Qty - o.filled
	o.avg = (o.avg*float64(o.filled) + price*float64(qty)) / float64(o.p.Qty)
	o.filled = o.p.Qty
	o.status = gateway.LineComplete
	o.reason = gateway.CompletionFill
	e.touch(o)

	r := o.report(gateway.ReportFill)
	r.FillPrice, r.HasFillPrice = price, true
	r.AvgFillPrice, r.HasAvgFillPrice = o.avg, true
	r.FillSize = qty
	r.TotalFilled = o.filled
	e.emit(func(h gateway.Handler) { h.OrderReport(r) })
	e.emitLine(o)

	e.position(b.in).apply(o.buy(), qty, price, b.in.PointValue)
	e.log.Debug("sim fill", zap.String("order_num", o.num), zap.Float64("price", price), zap.Int64("qty", qty))
}

func (e *Engine) cancel(o *order) {
	o.status = gateway.LineComplete
	o.reason = gateway.CompletionCancel
	e.touch(o)
	r := o.report(gateway.ReportCancel)
	e.emit(func(h gateway.Handler) { h.OrderReport(r) })
	e.emitLine(o)
}

// reject is the exchange refusing an order it already acknowledged.
func (e *Engine) reject(o *order, text string) {
	o.status = gateway.LineComplete
	o.reason = gateway.CompletionReject
	e.touch(o)
	r := o.report(gateway.ReportReject)
	r.Text = text
	e.emit(func(h gateway.Handler) { h.OrderReport(r) })
	e.emitLine(o)
}

// workOrders works every resting order of b's instrument, oldest first.
func (e *Engine) workOrders(b *book) {
	var resting []*order
	for _, o := range e.orders {
		if o.open() && o.p.Exchange == b.in.Exchange && o.p.Ticker == b.in.Ticker {
			resting = append(resting, o)
		}
	}
	sort.Slice(resting, func(i, j int) bool { return numLess(resting[i].num, resting[j].num) })
	for _, o := range resting {
		e.work(o, b)
	}
}

func (e *Engine) CancelOrder(acct gateway.Account, orderNum string, ctx gateway.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("cancel order"); err != nil {
		return err
	}
	o, ok := e.orders[orderNum]
	if !ok || !o.open() {
		return &gateway.Error{Op: "cancel order", Code: gateway.CodeBadParams, Text: "order not open"}
	}
	if ctx != 0 {
		o.ctx = ctx
	}
	e.cancel(o)
	return nil
}

func (e *Engine) SubscribeOrder(gateway.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requireLogin("subscribe order")
}

// ReplayOpenOrders reports every working order as history lines.
func (e *Engine) ReplayOpenOrders(gateway.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("replay open orders"); err != nil {
		return err
	}

	var lines []gateway.LineUpdate
	for _, o := range e.orders {
		if o.open() {
			lines = append(lines, o.line(gateway.History))
		}
	}
	sort.Slice(lines, func(i, j int) bool { return numLess(lines[i].OrderNum, lines[j].OrderNum) })
	e.emit(func(h gateway.Handler) { h.OpenOrderReplay(gateway.OpenOrderReplay{Lines: lines}) })
	return nil
}

// ReplaySingleOrder reports one order, attached to ctx, followed by the end
// of replay marker. An unknown order only gets the marker.
func (e *Engine) ReplaySingleOrder(acct gateway.Account, orderNum string, ctx gateway.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("replay single order"); err != nil {
		return err
	}

	done := gateway.SingleOrderReplay{OrderNum: orderNum, Context: ctx}
	if o, ok := e.orders[orderNum]; ok {
		o.ctx = ctx
		l := o.line(gateway.History)
		e.emit(func(h gateway.Handler) { h.LineUpdate(l) })
	} else {
		done.RpCode = gateway.CodeNoData
	}
	e.emit(func(h gateway.Handler) { h.SingleOrderReplay(done) })
	return nil
}

func (e *Engine) SetOrderContext(orderNum string, ctx gateway.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("set order context"); err != nil {
		return err
	}
	if o, ok := e.orders[orderNum]; ok {
		o.ctx = ctx
	}
	return nil
}

func numLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
