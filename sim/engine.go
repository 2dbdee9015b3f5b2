// Package sim is an in-process trading gateway. It accepts every outbound
// call of gateway.Engine and answers through the handler given at login,
// on its own goroutine, the way the vendor SDK does. Market orders fill at
// the touch, limit orders rest until the market reaches them, and bars are
// generated from a seeded random walk.
package sim

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/pkg/id"
)

type Instrument struct {
	Exchange    string
	Ticker      string
	Product     string
	Description string
	Price       float64
	Tick        float64
	PointValue  float64
}

func (in Instrument) key() string { return in.Ticker + "." + in.Exchange }

type Options struct {
	Account gateway.Account
	Balance float64
	// Password, when set, is the only password Login accepts.
	Password    string
	Seed        int64
	Instruments []Instrument
	Clock       func() time.Time
	Logger      *zap.Logger
}

type Engine struct {
	mu   sync.Mutex
	opts Options
	log  *zap.Logger
	rng  *rand.Rand
	ids  *id.Generator

	q        *queue
	loggedIn bool

	books     map[string]*book
	orders    map[string]*order
	nextNum   uint32
	positions map[string]*position
	balance   float64
	pnlOn     bool
}

func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	e := &Engine{
		opts:      opts,
		log:       opts.Logger,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		ids:       id.NewGenerator(opts.Seed),
		books:     map[string]*book{},
		orders:    map[string]*order{},
		nextNum:   1000,
		positions: map[string]*position{},
		balance:   opts.Balance,
	}
	for _, in := range opts.Instruments {
		e.books[in.key()] = newBook(in)
	}
	return e
}

var _ gateway.Engine = (*Engine)(nil)

func (e *Engine) stamp() (int, int) {
	t := e.opts.Clock()
	return int(t.Unix()), t.Nanosecond() / 1000
}

// emit queues a callback. Callers hold e.mu.
func (e *Engine) emit(fn func(gateway.Handler)) {
	if e.q != nil {
		e.q.push(fn)
	}
}

func (e *Engine) Login(p gateway.LoginParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p.Callbacks == nil || p.User == "" {
		return gateway.Reject("login", gateway.CodeBadParams)
	}
	if e.loggedIn {
		return &gateway.Error{Op: "login", Code: gateway.CodeBadParams, Text: "already logged in"}
	}
	e.q = newQueue(p.Callbacks)
	e.loggedIn = true

	ok := e.opts.Password == "" || p.Password == e.opts.Password
	for _, c := range []gateway.ConnectionID{
		gateway.MarketDataConnection, gateway.TradingSystemConnection,
		gateway.PnlConnection, gateway.IntradayHistoryConnection,
	} {
		a := gateway.Alert{Connection: c, Type: gateway.AlertLoginComplete}
		if !ok && c == gateway.TradingSystemConnection {
			a.Type = gateway.AlertLoginFailed
			a.Code = 13
			a.Text = "permission denied"
		}
		e.emit(func(h gateway.Handler) { h.Alert(a) })
	}
	if ok {
		acct := e.opts.Account
		e.emit(func(h gateway.Handler) { h.AccountList([]gateway.Account{acct}) })
	}
	e.log.Info("sim login", zap.String("user", p.User), zap.Bool("ok", ok))
	return nil
}

// Logout reports every connection closed, delivers what is queued and stops
// the callback goroutine.
func (e *Engine) Logout() error {
	e.mu.Lock()
	if !e.loggedIn {
		e.mu.Unlock()
		return gateway.Reject("logout", gateway.CodeNotLoggedIn)
	}
	for _, c := range []gateway.ConnectionID{
		gateway.MarketDataConnection, gateway.TradingSystemConnection,
		gateway.PnlConnection, gateway.IntradayHistoryConnection,
	} {
		a := gateway.Alert{Connection: c, Type: gateway.AlertConnectionClosed}
		e.emit(func(h gateway.Handler) { h.Alert(a) })
	}
	q := e.q
	e.q = nil
	e.loggedIn = false
	e.pnlOn = false
	for _, b := range e.books {
		b.subscribed = false
	}
	e.mu.Unlock()

	q.close()
	return nil
}

func (e *Engine) requireLogin(op string) error {
	if !e.loggedIn {
		return gateway.Reject(op, gateway.CodeNotLoggedIn)
	}
	return nil
}

// ListTradeRoutes reports one route per exchange, plus a route for another
// broker that the bridge must skip.
func (e *Engine) ListTradeRoutes() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireLogin("list trade routes"); err != nil {
		return err
	}

	acct := e.opts.Account
	seen := map[string]bool{}
	var routes []gateway.TradeRoute
	for _, in := range e.opts.Instruments {
		if seen[in.Exchange] {
			continue
		}
		seen[in.Exchange] = true
		routes = append(routes, gateway.TradeRoute{
			FcmID:    acct.FcmID,
			IbID:     acct.IbID,
			Exchange: in.Exchange,
			Route:    "sim-" + strings.ToLower(in.Exchange),
			Status:   gateway.RouteUp,
		})
	}
	routes = append(routes, gateway.TradeRoute{FcmID: "OTHER", IbID: "OTHER", Exchange: "CME", Route: "foreign", Status: gateway.RouteUp})
	e.emit(func(h gateway.Handler) { h.TradeRouteList(routes) })
	return nil
}
