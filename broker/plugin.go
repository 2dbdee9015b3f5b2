// Package broker is the host facade of the bridge. A trading host drives it
// through a handful of entry points (open, login, asset, history, account,
// buy, trade and command) from one control thread. Every failure is handed
// to the host as one line of text; nothing panics across the boundary.
package broker

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/poll"
	"github.com/rustyeddy/futbridge/session"
)

const (
	Name    = "Rithmic"
	Version = 2
)

var ErrNotLoggedIn = errors.New("not logged in")

// Host is the trading application on the other side of the facade.
type Host interface {
	// Error shows msg to the user.
	Error(msg string)
	// Progress keeps the host responsive during waits. Returning false
	// cancels the wait.
	Progress() bool
}

type Options struct {
	// Connect builds the vendor engine for one login.
	Connect func(user string) (gateway.Engine, error)
	// Session is the template for every session; User is filled in at login.
	Session session.Options

	// Duration and Wait are the order defaults restored at every login.
	Duration gateway.Duration
	Wait     time.Duration

	Logger *zap.Logger
	// Level, when set, is adjusted by the diagnostics and log level commands.
	Level *zap.AtomicLevel
	// LogLevel is the configured level name that diagnostics off returns to.
	LogLevel string
}

// Plugin holds the state of one host connection. Only the host control
// thread calls it.
type Plugin struct {
	opts     Options
	log      *zap.Logger
	host     Host
	sess     *session.Session
	settings Settings
	noData   map[string]bool
}

func New(opts Options) *Plugin {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Duration == "" {
		opts.Duration = gateway.DurationIOC
	}
	if opts.Wait <= 0 {
		opts.Wait = DefaultWait
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "info"
	}
	p := &Plugin{opts: opts, log: opts.Logger, noData: map[string]bool{}}
	p.settings.Reset(opts.Duration, opts.Wait)
	return p
}

// Open registers the host and returns the plugin name and interface version.
func (p *Plugin) Open(host Host) (string, int) {
	p.host = host
	return Name, Version
}

// Session returns the logged in session, or nil.
func (p *Plugin) Session() *session.Session { return p.sess }

// Settings returns a copy of the current order settings.
func (p *Plugin) Settings() Settings { return p.settings }

func (p *Plugin) report(msg string) {
	if p.host != nil {
		p.host.Error(msg)
	}
}

// fail reports err to the host and returns it.
func (p *Plugin) fail(err error) error {
	p.log.Error("broker call failed", zap.Error(err))
	p.report(err.Error())
	return err
}

func (p *Plugin) progress() poll.Progress {
	if p.host == nil {
		return nil
	}
	return p.host.Progress
}

func (p *Plugin) session() (*session.Session, error) {
	if p.sess == nil {
		return nil, p.fail(ErrNotLoggedIn)
	}
	return p.sess, nil
}

// Login connects user and returns the account id. An empty user logs out.
// Settings and the no-data set start over with every login.
func (p *Plugin) Login(user, password, accountType string) (string, error) {
	p.Logout()
	if user == "" {
		return "", nil
	}

	eng, err := p.opts.Connect(user)
	if err != nil {
		return "", p.fail(errors.WithMessage(err, "connect"))
	}
	so := p.opts.Session
	so.User = user
	so.Logger = p.log.Named("session")
	so.Report = p.report
	s := session.New(eng, so)

	p.settings.Reset(p.opts.Duration, p.opts.Wait)
	p.noData = map[string]bool{}

	if err := s.Login(password, p.progress()); err != nil {
		_ = s.Logout()
		if errors.Is(err, session.ErrLoginFailed) {
			return "", p.fail(err)
		}
		return "", p.fail(errors.WithMessage(err, "login"))
	}
	p.sess = s

	acct := s.Account().AccountID
	p.log.Info("login", zap.String("user", user), zap.String("type", accountType), zap.String("account", acct))
	p.report("Account " + acct)
	return acct, nil
}

// Logout closes the current session, if any.
func (p *Plugin) Logout() {
	if p.sess == nil {
		return
	}
	if err := p.sess.Logout(); err != nil {
		p.log.Warn("logout", zap.Error(err))
	}
	p.sess = nil
}

// Account returns the account balance.
func (p *Plugin) Account() (float64, error) {
	s, err := p.session()
	if err != nil {
		return 0, err
	}
	return s.PnL().AccountBalance, nil
}
