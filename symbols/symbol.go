package symbols

import (
	"math"
	"sync/atomic"

	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/snapshot"
)

// Readiness bits. A symbol is ready once it has seen a full top of book and
// a market mode.
const (
	ReadyTop    uint32 = 1 << 0
	ReadyStatus uint32 = 1 << 1
	ReadyAll           = ReadyTop | ReadyStatus
)

// Spec is the static reference data of an instrument.
type Spec struct {
	Product        string
	Description    string
	PriceIncrement float64
	PointValue     float64
	Tradable       bool
}

// Top is the best bid and offer. Missing prices are NaN.
type Top struct {
	BidPrice float64
	BidQty   int64
	AskPrice float64
	AskQty   int64
}

func (t Top) Complete() bool {
	return !math.IsNaN(t.BidPrice) && !math.IsNaN(t.AskPrice)
}

// Trade is the last trade print plus the running session volumes.
type Trade struct {
	Side       market.Side
	Price      float64
	Qty        int64
	Time       uint64
	BuyVolume  int64
	SellVolume int64
}

// Symbol is one subscribed instrument. Every field is written from gateway
// callbacks and read from the host thread.
type Symbol struct {
	market.Instrument

	spec  snapshot.Value[Spec]
	top   snapshot.Value[Top]
	trade snapshot.Value[Trade]
	ready snapshot.Bits
	open  atomic.Bool

	noData atomic.Bool
}

func newSymbol(inst market.Instrument) *Symbol {
	s := &Symbol{Instrument: inst}
	s.top.Store(Top{BidPrice: math.NaN(), AskPrice: math.NaN()})
	s.trade.Store(Trade{Price: math.NaN()})
	s.spec.Store(Spec{})
	return s
}

func (s *Symbol) Spec() Spec { return s.spec.Load() }
func (s *Symbol) Top() Top { return s.top.Load() }
func (s *Symbol) LastTrade() Trade { return s.trade.Load() }
func (s *Symbol) Ready() uint32 { return s.ready.Load() }
func (s *Symbol) IsReady() bool { return s.ready.Has(ReadyAll) }
func (s *Symbol) Tradable() bool { return s.open.Load() }
func (s *Symbol) NoDataSeen() bool { return s.noData.Load() }
func (s *Symbol) Key() string { return s.Symbol() }
