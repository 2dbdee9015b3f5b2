package broker

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/orders"
	"github.com/rustyeddy/futbridge/session"
)

// Buy return codes other than an order number.
const (
	BuyRejected = 0
	BuyUnfilled = 1
	BuyTimedOut = -2
)

// NotAvailable is the host's marker for a value it cannot use. Trade
// returns NotAvailable-1 for cancelled or unknown orders.
const NotAvailable = -999999

// TradeClosed is returned by Trade once the position the order opened is
// gone.
const TradeClosed = -1

// Fill is the result of Buy. Code is the exchange order number, or one of
// the Buy codes.
type Fill struct {
	Code  int
	Price float64
	Qty   int
}

// Buy sends an order for amount lots of asset, negative amounts sell. The
// limit price, duration and lot scale come from the settings; stopDist and
// limit are logged only, the host passes zero for market orders and zero is
// a valid futures price.
func (p *Plugin) Buy(asset string, amount int, stopDist, limit float64) Fill {
	set := &p.settings
	p.log.Info("buy", zap.String("asset", asset), zap.Int("amount", amount), zap.Float64("scale", set.Amount),
		zap.Float64("stop_dist", stopDist), zap.Float64("limit", limit), zap.Float64("set_limit", set.Limit),
		zap.String("duration", string(set.Duration)))
	if amount == 0 {
		return Fill{Code: BuyRejected}
	}
	s, err := p.session()
	if err != nil {
		return Fill{Code: BuyRejected}
	}

	side := market.Buy
	if amount < 0 {
		side = market.Sell
	}
	req := session.OrderRequest{
		Asset:        asset,
		Side:         side,
		Qty:          int64(math.Abs(float64(amount) * set.Amount)),
		Price:        set.Limit,
		TriggerPrice: math.NaN(),
		Duration:     set.Duration,
		UserMsg:      set.OrderText,
	}
	dur := set.Duration
	set.next()

	res, err := s.SendOrder(req, p.progress(), set.Wait)
	if err != nil {
		_ = p.fail(err)
		return Fill{Code: BuyRejected}
	}
	if !res.TimedOut && res.Text != "" {
		p.report(res.Text)
	}
	if res.Order == nil {
		switch {
		case dur == gateway.DurationFOK || dur == gateway.DurationIOC:
			return Fill{Code: BuyUnfilled}
		case res.TimedOut:
			return Fill{Code: BuyTimedOut}
		}
		return Fill{Code: BuyRejected}
	}

	o := res.Order
	switch o.CompletionReason {
	case gateway.CompletionFailure, gateway.CompletionCancel, gateway.CompletionReject:
		return Fill{Code: BuyRejected}
	}
	f := Fill{Code: int(o.OrderNum)}
	if o.ExecQty > 0 {
		f.Price = o.AvgFillPrice
		f.Qty = int(o.ExecQty)
	}
	return f
}

// TradeStatus is the result of Trade. Code is the filled quantity,
// TradeClosed, or NotAvailable-1.
type TradeStatus struct {
	Code int
	Open float64
}

// Trade reports the state of an order by exchange number, fetching it from
// the server when this process never saw it.
func (p *Plugin) Trade(id int) TradeStatus {
	s, err := p.session()
	if err != nil {
		return TradeStatus{Code: NotAvailable - 1}
	}
	o, err := s.RetrieveOrder(uint32(id), p.progress())
	if err != nil {
		p.log.Warn("trade lookup", zap.Int("order_num", id), zap.Error(err))
		p.report(fmt.Sprintf("Order %d not found", id))
		return TradeStatus{Code: NotAvailable - 1}
	}
	if o.State() == orders.Cancelled {
		return TradeStatus{Code: NotAvailable - 1}
	}

	st := TradeStatus{Code: int(o.ExecQty)}
	if o.ExecQty > 0 {
		st.Open = o.AvgFillPrice
	}
	if o.ExecQty >= o.Qty {
		pos := s.Position(o.Instrument.Symbol())
		if pos.Timestamp != 0 &&
			((o.Side == market.Buy && pos.Quantity <= 0) || (o.Side == market.Sell && pos.Quantity >= 0)) {
			st.Code = TradeClosed
		}
	}
	return st
}
