package session

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/metrics"
	"github.com/rustyeddy/futbridge/poll"
	"github.com/rustyeddy/futbridge/request"
)

// Login bits, one per sub-connection plus a failure bit.
const (
	MarketDataUp uint32 = 1 << iota
	TradingUp
	HistoryUp
	PnlUp
	LoginFailure

	AllUp = MarketDataUp | TradingUp | HistoryUp | PnlUp
)

type State int

const (
	Unauthenticated State = iota
	LoggingIn
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case LoggingIn:
		return "logging in"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func connectionBit(c gateway.ConnectionID) uint32 {
	switch c {
	case gateway.MarketDataConnection:
		return MarketDataUp
	case gateway.TradingSystemConnection:
		return TradingUp
	case gateway.IntradayHistoryConnection:
		return HistoryUp
	case gateway.PnlConnection:
		return PnlUp
	}
	return 0
}

// LoginBits returns the raw login mask.
func (s *Session) LoginBits() uint32 { return s.login.Load() }

// State summarises the login mask.
func (s *Session) State() State {
	b := s.login.Load()
	switch {
	case b&LoginFailure != 0:
		return Failed
	case b&AllUp == AllUp:
		return Ready
	case s.started.Load():
		return LoggingIn
	}
	return Unauthenticated
}

// Login runs the whole login sequence: connect all four sub-connections,
// discover the account, load trade routes, replay open orders and replay
// P&L. Any failure except a P&L replay timeout aborts the login.
func (s *Session) Login(password string, progress poll.Progress) error {
	s.started.Store(true)

	params := gateway.LoginParams{
		User:       s.opts.User,
		Password:   password,
		AppName:    s.opts.AppName,
		AppVersion: s.opts.AppVersion,
		Callbacks:  s,
	}
	params.DefaultPoints()
	if err := s.gw.Login(params); err != nil {
		return errors.WithMessage(err, "login")
	}

	start := time.Now()
	out := poll.Until(progress, 0, func() bool {
		b := s.login.Load()
		return b&LoginFailure != 0 || b&AllUp == AllUp
	})
	metrics.ObserveWait("login", start)
	if out == poll.Cancelled {
		return poll.ErrCancelled
	}
	if s.login.Any(LoginFailure) {
		return errors.WithMessagef(ErrLoginFailed, "user %s, state %#x", s.opts.User, s.login.Load())
	}
	s.log.Info("all connections up", zap.String("user", s.opts.User))

	if poll.Until(progress, 0, s.accountSeen.Load) == poll.Cancelled {
		return poll.ErrCancelled
	}
	acct := s.account.Load()
	s.orders.SetAccount(acct)
	s.log.Info("account", zap.String("fcm", acct.FcmID), zap.String("ib", acct.IbID),
		zap.String("account", acct.AccountID), zap.String("name", acct.AccountName))

	if err := s.track(request.TradeRoutes, progress, 0, s.gw.ListTradeRoutes); err != nil {
		return err
	}

	err := s.track(request.OpenOrders, progress, 0, func() error {
		if err := s.gw.SubscribeOrder(acct); err != nil {
			return err
		}
		return s.gw.ReplayOpenOrders(acct)
	})
	if err != nil {
		return err
	}
	n := s.orders.IndexAll()
	s.log.Info("open orders indexed", zap.Int("orders", n))

	err = s.track(request.PnlReplay, progress, s.opts.PnlReplayTimeout, func() error {
		if err := s.gw.SubscribePnl(acct); err != nil {
			return err
		}
		return s.gw.ReplayPnl(acct)
	})
	switch {
	case errors.Is(err, ErrRequestTimeout):
		s.report("replayPnl timeout")
	case err != nil:
		return err
	}
	return nil
}

// Logout closes the gateway session.
func (s *Session) Logout() error {
	if err := s.gw.Logout(); err != nil {
		return errors.WithMessage(err, "logout")
	}
	s.login.Reset()
	s.started.Store(false)
	return nil
}

// track runs one request through the request tracker: begin, issue, wait.
func (s *Session) track(kind request.Kind, progress poll.Progress, timeout time.Duration, issue func() error) error {
	s.req.Begin(kind)
	if err := issue(); err != nil {
		s.req.Abort()
		metrics.RequestOutcomes.WithLabelValues(kind.String(), "rejected").Inc()
		return errors.WithMessagef(err, "%s", kind)
	}

	start := time.Now()
	st := s.req.Wait(progress, timeout)
	metrics.ObserveWait(kind.String(), start)
	metrics.RequestOutcomes.WithLabelValues(kind.String(), st.String()).Inc()
	switch st {
	case request.Complete:
		return nil
	case request.Timeout:
		return errors.WithMessagef(ErrRequestTimeout, "%s", kind)
	}
	return errors.WithMessagef(ErrRequestFailed, "%s", kind)
}
