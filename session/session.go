// Package session ties the bridge together. A Session owns the gateway
// engine, receives every gateway callback and routes it to the symbol
// registry, the order engine and the account reconciler, and runs the login
// sequence and the tracked requests on the host control thread.
package session

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/account"
	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/orders"
	"github.com/rustyeddy/futbridge/request"
	"github.com/rustyeddy/futbridge/snapshot"
	"github.com/rustyeddy/futbridge/symbols"
)

var (
	ErrLoginFailed    = errors.New("login failed")
	ErrRequestFailed  = errors.New("request failed")
	ErrRequestTimeout = errors.New("request timed out")
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrSymbolClosed   = errors.New("symbol is closed")
	ErrNoTradeRoute   = errors.New("trade route not found")
)

// Recorder receives every applied order, fill and account update.
type Recorder interface {
	RecordOrder(orders.Order) error
	RecordFill(orders.Order) error
	RecordPnL(account.PnL) error
	RecordPosition(asset string, p account.Position) error
}

type Options struct {
	User       string
	AppName    string
	AppVersion string

	// Pid and Capacity configure the order arena.
	Pid      uint64
	Capacity int

	QuoteTimeout     time.Duration
	PnlReplayTimeout time.Duration

	Logger   *zap.Logger
	Recorder Recorder

	// Report shows a message to the user. Used for non-fatal problems the
	// host should see.
	Report func(msg string)
	// Notify runs after every market data change of a symbol.
	Notify func(*symbols.Symbol)
}

const (
	DefaultQuoteTimeout     = 10 * time.Second
	DefaultPnlReplayTimeout = 10 * time.Second
)

type Session struct {
	gw   gateway.Engine
	opts Options
	log  *zap.Logger

	login   snapshot.Bits
	started atomic.Bool
	req     request.Tracker

	account     snapshot.Value[gateway.Account]
	accountSeen atomic.Bool
	routes      snapshot.Value[map[string]string]

	symbols   *symbols.Registry
	orders    *orders.Engine
	positions *account.Reconciler
	bars      snapshot.Value[*barBatch]
}

func New(gw gateway.Engine, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.QuoteTimeout <= 0 {
		opts.QuoteTimeout = DefaultQuoteTimeout
	}
	if opts.PnlReplayTimeout <= 0 {
		opts.PnlReplayTimeout = DefaultPnlReplayTimeout
	}
	if opts.AppName == "" {
		opts.AppName = "futbridge"
	}

	s := &Session{gw: gw, opts: opts, log: opts.Logger}
	var symOpts []symbols.Option
	if opts.Notify != nil {
		symOpts = append(symOpts, symbols.WithNotify(opts.Notify))
	}
	s.symbols = symbols.NewRegistry(gw, opts.Logger.Named("symbols"), symOpts...)
	s.orders = orders.NewEngine(gw, orders.Options{
		Capacity: opts.Capacity,
		Pid:      opts.Pid,
		Logger:   opts.Logger.Named("orders"),
	})
	s.positions = account.NewReconciler(opts.Logger.Named("account"))
	s.routes.Store(map[string]string{})
	return s
}

func (s *Session) Symbols() *symbols.Registry { return s.symbols }
func (s *Session) Orders() *orders.Engine { return s.orders }
func (s *Session) Positions() *account.Reconciler { return s.positions }

// Account returns the trading account discovered at login.
func (s *Session) Account() gateway.Account { return s.account.Load() }

func (s *Session) PnL() account.PnL { return s.positions.PnL() }

func (s *Session) Position(asset string) account.Position { return s.positions.Position(asset) }

// Route returns the trade route for an exchange.
func (s *Session) Route(exchange string) (string, bool) {
	r, ok := s.routes.Load()[exchange]
	return r, ok
}

// Routes returns a copy of the exchange to route table.
func (s *Session) Routes() map[string]string {
	out := map[string]string{}
	for k, v := range s.routes.Load() {
		out[k] = v
	}
	return out
}

func (s *Session) report(msg string) {
	s.log.Warn(msg)
	if s.opts.Report != nil {
		s.opts.Report(msg)
	}
}

func routeUp(status string) bool {
	return strings.EqualFold(status, gateway.RouteUp)
}
