package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/broker"
	"github.com/rustyeddy/futbridge/config"
	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/journal"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/metrics"
	"github.com/rustyeddy/futbridge/monitor"
	"github.com/rustyeddy/futbridge/poll"
	"github.com/rustyeddy/futbridge/session"
	"github.com/rustyeddy/futbridge/sim"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the bridge against the simulated gateway",
	Long: `Log in to the built-in simulated gateway through the host facade, quote
every configured instrument, buy, hold while the market moves and flatten.

While it runs the bridge serves Prometheus metrics and the status monitor,
and records every order, fill and P&L update to the journal.

Examples:
  futbridge demo
  futbridge demo --asset NQZ6.CME --qty 2 --for 30s --bars H1`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

var (
	demoAsset string
	demoQty   int
	demoFor   time.Duration
	demoTick  time.Duration
	demoBars  string
)

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().StringVar(&demoAsset, "asset", "", "asset to trade (default: first sim instrument)")
	demoCmd.Flags().IntVar(&demoQty, "qty", 1, "contracts to buy")
	demoCmd.Flags().DurationVar(&demoFor, "for", 10*time.Second, "how long to hold the position")
	demoCmd.Flags().DurationVar(&demoTick, "tick", 250*time.Millisecond, "simulated market step")
	demoCmd.Flags().StringVar(&demoBars, "bars", "M1", "history bar period (M5, H1, D1)")
}

// barPeriod converts a timeframe into History's tick minutes and the span
// covering 30 bars.
func barPeriod(tf string) (int, time.Duration, error) {
	minutes, err := market.ParseTimeframe(tf)
	if err != nil {
		return 0, 0, err
	}
	span := 30 * time.Duration(minutes) * time.Minute
	if minutes == market.MinutesPerDay {
		return session.DailyMinutes, span, nil
	}
	return minutes, span, nil
}

// printHost shows host messages on stderr.
type printHost struct{ ctx context.Context }

func (h printHost) Error(msg string) { fmt.Fprintln(os.Stderr, "!", msg) }
func (h printHost) Progress() bool { return h.ctx.Err() == nil }

func simEngine(cfg *config.Config, log *zap.Logger) (*sim.Engine, error) {
	opts := sim.Options{
		Account: gateway.Account{FcmID: "SIM", IbID: "SIM", AccountID: cfg.Sim.Account, AccountName: "Simulated"},
		Balance: cfg.Sim.Balance,
		Seed:    cfg.Sim.Seed,
		Logger:  log.Named("sim"),
	}
	for _, in := range cfg.Sim.Instruments {
		inst, err := market.ParseAsset(in.Symbol)
		if err != nil {
			return nil, err
		}
		opts.Instruments = append(opts.Instruments, sim.Instrument{
			Exchange:   inst.Exchange,
			Ticker:     inst.Ticker,
			Price:      in.Price,
			Tick:       in.Tick,
			PointValue: in.PointValue,
		})
	}
	return sim.NewEngine(opts), nil
}

func serve(ctx context.Context, log *zap.Logger, addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", zap.String("addr", addr), zap.Error(err))
		}
	}()
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, atom, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	wait, err := cfg.Orders.WaitDuration()
	if err != nil {
		return err
	}
	quoteTimeout, err := cfg.Orders.QuoteTimeoutDuration()
	if err != nil {
		return err
	}
	pnlTimeout, err := cfg.Orders.PnlReplayTimeoutDuration()
	if err != nil {
		return err
	}
	interval, err := cfg.Monitor.IntervalDuration()
	if err != nil {
		return err
	}
	if demoAsset == "" {
		if len(cfg.Sim.Instruments) == 0 {
			return errors.New("no sim instruments configured")
		}
		demoAsset = cfg.Sim.Instruments[0].Symbol
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, err := simEngine(cfg, log)
	if err != nil {
		return err
	}
	user := cfg.Server.User
	if user == "" {
		user = "demo"
	}

	sessOpts := session.Options{
		AppName:          cfg.Server.AppName,
		AppVersion:       cfg.Server.AppVersion,
		Pid:              uint64(os.Getpid()),
		Capacity:         cfg.Orders.Capacity,
		QuoteTimeout:     quoteTimeout,
		PnlReplayTimeout: pnlTimeout,
	}
	if cfg.Journal.DBPath != "" {
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return err
		}
		defer j.Close()
		run, err := j.StartRun(user, "sim")
		if err != nil {
			return err
		}
		sessOpts.Recorder = j
		fmt.Printf("journal run %s (%s)\n", run, cfg.Journal.DBPath)
	}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		serve(ctx, log, cfg.Metrics.Addr, mux)
	}

	p := broker.New(broker.Options{
		Connect:  func(string) (gateway.Engine, error) { return engine, nil },
		Session:  sessOpts,
		Duration: gateway.Duration(cfg.Orders.DefaultDuration),
		Wait:     wait,
		Logger:   log,
		Level:    &atom,
		LogLevel: cfg.Log.Level,
	})
	name, version := p.Open(printHost{ctx: ctx})
	fmt.Printf("%s plugin v%d\n", name, version)

	acct, err := p.Login(user, "", "Demo")
	if err != nil {
		return err
	}
	defer p.Logout()

	if cfg.Monitor.Addr != "" {
		mon := monitor.NewServer(monitor.SessionSource(p.Session()), interval, log.Named("monitor"))
		mux := http.NewServeMux()
		mux.Handle("/ws", mon)
		serve(ctx, log, cfg.Monitor.Addr, mux)
		go mon.Run(ctx)
		fmt.Printf("monitor on ws://%s/ws\n", cfg.Monitor.Addr)
	}
	go engine.Run(ctx, demoTick)

	bal, _ := p.Account()
	fmt.Printf("account %s balance %.2f\n", acct, bal)
	for _, in := range cfg.Sim.Instruments {
		q, err := p.Asset(in.Symbol, true)
		if err != nil {
			continue
		}
		fmt.Printf("  %-12s price %.2f spread %.2f volume %.0f\n", in.Symbol, q.Price, q.Spread, q.Volume)
	}

	minutes, span, err := barPeriod(demoBars)
	if err != nil {
		return err
	}
	end := time.Now().UTC()
	bars, err := p.History(demoAsset, end.Add(-span), end, minutes, 30)
	if err == nil && len(bars) > 0 {
		fmt.Printf("history %s %s: %d bars, last close %.2f at %s\n", demoAsset, demoBars, len(bars), bars[0].Close, bars[0].Time.Format(time.RFC3339))
	}

	fill := p.Buy(demoAsset, demoQty, 0, 0)
	if fill.Code <= broker.BuyUnfilled {
		return errors.Errorf("buy %s: code %d", demoAsset, fill.Code)
	}
	fmt.Printf("bought %d %s @ %.2f, order %d\n", fill.Qty, demoAsset, fill.Price, fill.Code)

	select {
	case <-ctx.Done():
	case <-time.After(demoFor):
	}

	pos := p.Command(broker.GetPosition, demoAsset)
	fmt.Printf("position %s %.0f @ %.2f\n", demoAsset, pos, p.Command(broker.GetAvgEntry, nil))
	if pos != 0 {
		// an interrupt must not cancel the closing order
		p.Open(printHost{ctx: context.Background()})
		out := p.Buy(demoAsset, -int(pos), 0, 0)
		fmt.Printf("flattened %d @ %.2f, order %d\n", out.Qty, out.Price, out.Code)
		if st := p.Trade(fill.Code); st.Code == broker.TradeClosed {
			fmt.Printf("trade %d closed\n", fill.Code)
		}
	}

	poll.Until(nil, time.Second, func() bool { return p.Session().Position(demoAsset).Flat() })
	pnl := p.Session().PnL()
	fmt.Printf("pnl %.2f realized %.2f unrealized %.2f balance %.2f\n", pnl.PnL, pnl.Realized, pnl.Unrealized, pnl.AccountBalance)
	return nil
}
