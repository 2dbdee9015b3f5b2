package session

import (
	"time"

	"github.com/pkg/errors"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/orders"
	"github.com/rustyeddy/futbridge/poll"
	"github.com/rustyeddy/futbridge/symbols"
)

// Subscribe registers asset for market data and position tracking.
func (s *Session) Subscribe(asset string) (*symbols.Symbol, error) {
	sym, err := s.symbols.Subscribe(asset)
	if err != nil {
		return nil, err
	}
	s.positions.Track(asset)
	return sym, nil
}

// Quote subscribes asset if needed and blocks until it has a full top of book
// and a market mode, or the quote timeout runs out.
func (s *Session) Quote(asset string, progress poll.Progress) (symbols.Quote, error) {
	if _, err := s.Subscribe(asset); err != nil {
		return symbols.Quote{}, err
	}
	return s.symbols.Quote(asset, progress, s.opts.QuoteTimeout)
}

type OrderRequest struct {
	Asset        string
	Side         market.Side
	Qty          int64
	Price        float64
	TriggerPrice float64
	Duration     gateway.Duration
	UserMsg      string
}

// SendOrder checks that the asset is subscribed, open and routable, then
// submits the order and waits up to wait for its acknowledgement.
func (s *Session) SendOrder(req OrderRequest, progress poll.Progress, wait time.Duration) (orders.Result, error) {
	sym, ok := s.symbols.Get(req.Asset)
	if !ok {
		return orders.Result{}, errors.WithMessagef(ErrSymbolNotFound, "%s", req.Asset)
	}
	if !sym.Tradable() {
		return orders.Result{}, errors.WithMessagef(ErrSymbolClosed, "%s", req.Asset)
	}
	route, ok := s.Route(sym.Exchange)
	if !ok {
		return orders.Result{}, errors.WithMessagef(ErrNoTradeRoute, "exchange %s", sym.Exchange)
	}

	return s.orders.Send(orders.Request{
		Instrument:   sym.Instrument,
		Side:         req.Side,
		Qty:          req.Qty,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
		Duration:     req.Duration,
		Route:        route,
		UserMsg:      req.UserMsg,
	}, progress, wait)
}

func (s *Session) CancelOrder(orderNum uint32, progress poll.Progress) (orders.Order, error) {
	return s.orders.Cancel(orderNum, progress)
}

func (s *Session) RetrieveOrder(orderNum uint32, progress poll.Progress) (orders.Order, error) {
	return s.orders.Retrieve(orderNum, progress)
}
