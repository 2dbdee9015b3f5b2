package session

import (
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/metrics"
	"github.com/rustyeddy/futbridge/orders"
	"github.com/rustyeddy/futbridge/request"
)

var _ gateway.Handler = (*Session)(nil)

func received(kind string) {
	metrics.Callbacks.WithLabelValues(kind).Inc()
}

func (s *Session) Alert(a gateway.Alert) {
	received("alert")
	bit := connectionBit(a.Connection)
	s.log.Info("alert", zap.Stringer("connection", a.Connection), zap.Stringer("type", a.Type),
		zap.Int("code", a.Code), zap.String("text", a.Text))
	if bit == 0 {
		return
	}
	switch a.Type {
	case gateway.AlertLoginComplete:
		s.login.Set(bit)
		metrics.LoginState.WithLabelValues(a.Connection.String()).Set(1)
	case gateway.AlertLoginFailed, gateway.AlertConnectionBroken:
		s.login.Set(LoginFailure)
		metrics.LoginState.WithLabelValues(a.Connection.String()).Set(0)
	}
}

func (s *Session) AccountList(accts []gateway.Account) {
	received("account_list")
	if len(accts) == 0 || s.accountSeen.Load() {
		return
	}
	s.account.Store(accts[0])
	s.accountSeen.Store(true)
}

func (s *Session) TradeRouteList(routes []gateway.TradeRoute) {
	received("trade_routes")
	acct := s.account.Load()
	m := map[string]string{}
	for _, r := range routes {
		if r.FcmID != acct.FcmID || r.IbID != acct.IbID || !routeUp(r.Status) {
			continue
		}
		if _, ok := m[r.Exchange]; !ok {
			m[r.Exchange] = r.Route
			s.log.Debug("trade route", zap.String("exchange", r.Exchange), zap.String("route", r.Route))
		}
	}
	s.routes.Store(m)
	s.req.Resolve(request.TradeRoutes, request.Complete)
}

func (s *Session) RefData(d gateway.RefData) {
	received("ref_data")
	s.symbols.ApplyRefData(d)
}

func (s *Session) PriceIncrUpdate(p gateway.PriceIncr) {
	received("price_incr")
	s.symbols.ApplyPriceIncr(p)
}

func (s *Session) BestBidQuote(q gateway.Quote) {
	received("best_bid")
	s.symbols.ApplyBid(q)
}

func (s *Session) BestAskQuote(q gateway.Quote) {
	received("best_ask")
	s.symbols.ApplyAsk(q)
}

func (s *Session) BestBidAskQuote(bid, ask gateway.Quote) {
	received("best_bid_ask")
	s.symbols.ApplyBidAsk(bid, ask)
}

func (s *Session) TradePrint(p gateway.TradePrint) {
	received("trade_print")
	s.symbols.ApplyTrade(p)
}

func (s *Session) MarketMode(m gateway.MarketMode) {
	received("market_mode")
	s.symbols.ApplyMarketMode(m)
}

func (s *Session) LineUpdate(l gateway.LineUpdate) {
	received("line_update")
	if o, ok := s.orders.ApplyLine(l); ok {
		s.recordOrder(o, false)
	}
}

func (s *Session) OpenOrderReplay(r gateway.OpenOrderReplay) {
	received("open_order_replay")
	n, err := s.orders.IngestOpenOrders(r)
	status := request.Complete
	if err != nil {
		s.log.Error("open order replay", zap.Error(err))
		status = request.Failed
	} else if r.RpCode != gateway.RpOK {
		s.log.Error("open order replay failed", zap.Int("rp_code", r.RpCode))
		status = request.Failed
	}
	s.log.Info("open orders replayed", zap.Int("own", n), zap.Int("lines", len(r.Lines)))
	s.req.Resolve(request.OpenOrders, status)
}

func (s *Session) SingleOrderReplay(r gateway.SingleOrderReplay) {
	received("single_order_replay")
	s.orders.ApplySingleReplay(r)
}

func (s *Session) OrderReport(r gateway.Report) {
	received("report_" + r.Kind.String())
	if o, ok := s.orders.ApplyReport(r); ok {
		s.recordOrder(o, r.Kind == gateway.ReportFill)
	}
}

func (s *Session) Bar(b gateway.Bar) {
	received("bar")
	if batch := s.bars.Load(); batch != nil {
		batch.add(b)
	}
}

func (s *Session) BarReplay(r gateway.BarReplay) {
	received("bar_replay")
	if r.RpCode != gateway.RpOK {
		s.log.Debug("bar replay", zap.Int("rp_code", r.RpCode), zap.String("ticker", r.Ticker))
	}
	s.req.Resolve(request.Bars, request.Complete)
}

func (s *Session) PnlUpdate(info gateway.PnlInfo) {
	received("pnl_update")
	if s.positions.Apply(info) {
		s.recordAccount(info)
	}
}

func (s *Session) PnlReplay(r gateway.PnlReplay) {
	received("pnl_replay")
	s.positions.ApplyReplay(r, s.recordAccount)
	s.req.Resolve(request.PnlReplay, request.Complete)
}

func (s *Session) recordOrder(o orders.Order, fill bool) {
	rec := s.opts.Recorder
	if rec == nil {
		return
	}
	var err error
	if fill {
		err = rec.RecordFill(o)
	} else {
		err = rec.RecordOrder(o)
	}
	if err != nil {
		s.log.Error("journal order", zap.Uint64("client_order_id", o.ClientOrderID), zap.Error(err))
	}
}

func (s *Session) recordAccount(info gateway.PnlInfo) {
	rec := s.opts.Recorder
	if rec == nil {
		return
	}
	var err error
	if asset := info.Symbol(); asset != "" {
		err = rec.RecordPosition(asset, s.positions.Position(asset))
	} else {
		err = rec.RecordPnL(s.positions.PnL())
	}
	if err != nil {
		s.log.Error("journal account", zap.Error(err))
	}
}
