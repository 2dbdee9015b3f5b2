package sim

import (
	"sort"

	"github.com/rustyeddy/futbridge/gateway"
)

type position struct {
	in       Instrument
	qty      int64
	avg      float64
	bought   int64
	sold     int64
	realized float64
}

func (e *Engine) position(in Instrument) *position {
	p, ok := e.positions[in.key()]
	if !ok {
		p = &position{in: in}
		e.positions[in.key()] = p
	}
	return p
}

// apply books a fill. Fills against the open side realize P&L at the average
// entry; the remainder, if any, opens a position at the fill price.
func (p *position) apply(buy bool, qty int64, price, pointValue float64) {
	signed := qty
	if buy {
		p.bought += qty
	} else {
		p.sold += qty
		signed = -qty
	}

	switch {
	case p.qty == 0 || (p.qty > 0) == buy:
		total := abs(p.qty) + qty
		p.avg = (p.avg*float64(abs(p.qty)) + price*float64(qty)) / float64(total)
		p.qty += signed
	default:
		closing := min(qty, abs(p.qty))
		dir := 1.0
		if p.qty < 0 {
			dir = -1
		}
		p.realized += (price - p.avg) * float64(closing) * dir * pointValue
		p.qty += signed
		switch {
		case p.qty == 0:
			p.avg = 0
		case qty > closing:
			p.avg = price
		}
	}
}

// UnrealizedPL values the open quantity at mark.
func UnrealizedPL(qty int64, avg, mark, pointValue float64) float64 {
	if qty == 0 {
		return 0
	}
	return (mark - avg) * float64(qty) * pointValue
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// mark is where an open position would close.
func mark(p *position, b *book) float64 {
	if p.qty > 0 {
		return b.bid
	}
	return b.ask
}

// pnlItems builds one row per instrument position plus the account row.
func (e *Engine) pnlItems() []gateway.PnlInfo {
	ssboe, usecs := e.stamp()
	acct := e.opts.Account

	keys := make([]string, 0, len(e.positions))
	for k := range e.positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var open, closed float64
	items := make([]gateway.PnlInfo, 0, len(keys)+1)
	for _, k := range keys {
		p := e.positions[k]
		upl := UnrealizedPL(p.qty, p.avg, mark(p, e.books[k]), p.in.PointValue)
		open += upl
		closed += p.realized

		info := gateway.PnlInfo{
			Account:   acct,
			Exchange:  p.in.Exchange,
			Ticker:    p.in.Ticker,
			Ssboe:     ssboe,
			Usecs:     usecs,
			OpenPnl:   gateway.Set(upl),
			ClosedPnl: gateway.Set(p.realized),
			Position:  gateway.Set(p.qty),
			BuyQty:    gateway.Set(p.bought),
			SellQty:   gateway.Set(p.sold),
		}
		if p.qty == 0 {
			info.AvgOpenFillPrice = gateway.Cleared[float64]()
		} else {
			info.AvgOpenFillPrice = gateway.Set(p.avg)
		}
		items = append(items, info)
	}

	items = append(items, gateway.PnlInfo{
		Account:        acct,
		Ssboe:          ssboe,
		Usecs:          usecs,
		OpenPnl:        gateway.Set(open),
		ClosedPnl:      gateway.Set(closed),
		AccountBalance: gateway.Set(e.balance + closed),
	})
	return items
}

// publishPnl sends the current P&L rows as live updates once P&L is
// subscribed.
func (e *Engine) publishPnl() {
	if !e.pnlOn {
		return
	}
	for _, info := range e.pnlItems() {
		e.emit(func(h gateway.Handler) { h.PnlUpdate(info) })
	}
}

func (e *Engine) SubscribePnl(gateway.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("subscribe pnl"); err != nil {
		return err
	}
	e.pnlOn = true
	return nil
}

func (e *Engine) ReplayPnl(gateway.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("replay pnl"); err != nil {
		return err
	}
	rep := gateway.PnlReplay{Items: e.pnlItems()}
	e.emit(func(h gateway.Handler) { h.PnlReplay(rep) })
	return nil
}
