package broker

import (
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/internal/logging"
)

// Op is a host command code. The values follow the host's header.
type Op int

const (
	GetCompliance  Op = 51
	GetBrokerZone  Op = 40
	GetMaxTicks    Op = 43
	GetMaxRequests Op = 45
	GetLock        Op = 46
	GetHeartbeat   Op = 47
	GetPosition    Op = 53
	GetAvgEntry    Op = 55
	GetOptions     Op = 64
	GetFutures     Op = 65
	GetPriceType   Op = 150
	GetVolType     Op = 155
	GetCallback    Op = 174

	SetOrderText   Op = 131
	SetSymbol      Op = 132
	SetMultiplier  Op = 133
	SetLimit       Op = 135
	SetDiagnostics Op = 138
	SetAmount      Op = 139
	SetLeverage    Op = 140
	SetPriceType   Op = 151
	SetVolType     Op = 152
	SetOrderType   Op = 157
	SetHWND        Op = 169
	SetWait        Op = 170
	SetCCY         Op = 171
	SetFunctions   Op = 172

	DoCancel Op = 301

	// Bridge specific commands.
	SetLogLevel   Op = 2000
	SetDayDefault Op = 2001
)

// Command runs one host command. arg is a number, or a string for the
// commands that take text. Setters echo a numeric argument back, and return
// 1 for a text argument; unknown commands return 0.
func (p *Plugin) Command(op Op, arg any) float64 {
	set := &p.settings
	switch op {
	case GetCompliance:
		return 15
	case GetBrokerZone, GetMaxRequests:
		return 0
	case GetMaxTicks:
		return 10000
	case GetLock:
		return -1

	case GetPosition:
		asset, _ := arg.(string)
		if p.sess == nil || asset == "" {
			return 0
		}
		set.LastPosition = p.sess.Position(asset)
		p.log.Debug("position", zap.String("asset", asset),
			zap.Int64("qty", set.LastPosition.Quantity), zap.Float64("avg", set.LastPosition.AveragePrice))
		return float64(set.LastPosition.Quantity)
	case GetAvgEntry:
		return set.LastPosition.AveragePrice

	case SetOrderText:
		set.OrderText, _ = arg.(string)
		return 1
	case SetSymbol:
		set.Symbol, _ = arg.(string)
		return 1
	case SetMultiplier:
		set.Multiplier = number(arg)
		return set.Multiplier

	case SetOrderType:
		switch int(number(arg)) {
		case 0:
			set.Duration = gateway.DurationIOC
		case 1:
			set.Duration = gateway.DurationFOK
		case 2:
			set.Duration = gateway.DurationGTC
		default:
			p.log.Info("unsupported order type, using IOC", zap.Any("type", arg))
			set.Duration = gateway.DurationIOC
		}
		return number(arg)

	case SetWait:
		ms := number(arg)
		set.Wait = time.Duration(ms) * time.Millisecond
		return ms

	case GetPriceType:
		return float64(set.PriceType)
	case SetPriceType:
		set.PriceType = int(number(arg))
		return number(arg)

	case SetAmount:
		set.Amount = number(arg)
		return set.Amount
	case SetLimit:
		set.Limit = number(arg)
		return set.Limit

	case SetDiagnostics:
		switch int(number(arg)) {
		case 1:
			p.setLevel("trace")
		case 0:
			p.setLevel(p.opts.LogLevel)
		}
		return number(arg)

	case SetLogLevel:
		n := int(number(arg))
		if n < 0 || n >= len(logging.Levels) {
			return 0
		}
		p.setLevel(logging.LevelAt(n))
		return number(arg)

	case SetDayDefault:
		if number(arg) != 0 {
			set.Duration = gateway.DurationDay
		} else {
			set.Duration = gateway.DurationIOC
		}
		return number(arg)

	case GetVolType:
		if set.PriceType == PriceTrade {
			return 4
		}
		return 3
	case SetVolType:
		set.VolType = int(number(arg))
		return number(arg)

	case SetHWND:
		set.Window = uintptr(number(arg))
		return number(arg)

	case DoCancel:
		n := number(arg)
		if p.sess == nil {
			return 0
		}
		if _, err := p.sess.CancelOrder(uint32(n), p.progress()); err != nil {
			_ = p.fail(err)
		}
		return n

	case GetOptions, GetFutures, GetHeartbeat, GetCallback, SetCCY, SetLeverage, SetFunctions:
		return 0
	}
	p.log.Debug("unhandled command", zap.Int("op", int(op)), zap.Any("arg", arg))
	return 0
}

func (p *Plugin) setLevel(name string) {
	if p.opts.Level == nil {
		return
	}
	if err := logging.SetLevel(*p.opts.Level, name); err != nil {
		p.log.Warn("log level", zap.String("level", name), zap.Error(err))
	}
}

func number(arg any) float64 {
	switch v := arg.(type) {
	case float64:
		return v
	case *float64:
		if v != nil {
			return *v
		}
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case uintptr:
		return float64(v)
	}
	return 0
}
