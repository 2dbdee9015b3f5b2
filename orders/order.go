package orders

import (
	"math"
	"strconv"
	"strings"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
)

// TagPrefix marks the user tag of every order placed by this bridge. Orders
// whose tag lacks it belong to other applications on the same account.
const TagPrefix = "ZORRO_"

// MaxOrders is the default arena capacity.
const MaxOrders = 1_000_000

// ClientOrderID combines the process id with the arena slot index.
func ClientOrderID(pid uint64, slot uint32) uint64 {
	return pid<<32 | uint64(slot)
}

// Tag returns the user tag carrying a client order id.
func Tag(clientID uint64) string {
	return TagPrefix + strconv.FormatUint(clientID, 10)
}

// ParseTag extracts the client order id from a tag. It fails for foreign tags.
func ParseTag(tag string) (uint64, bool) {
	rest, ok := strings.CutPrefix(tag, TagPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseOrderNum(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

func formatOrderNum(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}

type State int

const (
	New State = iota
	Submitted
	Acknowledged
	PartiallyFilled
	Filled
	Cancelled
	Rejected
	Failed
)

var stateNames = [...]string{"new", "submitted", "acknowledged", "partially filled", "filled", "cancelled", "rejected", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further fills can happen.
func (s State) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected || s == Failed
}

// Order is one arena slot's snapshot. It is replaced wholesale on every update.
type Order struct {
	Slot          uint32
	ClientOrderID uint64
	OrderNum      uint32

	Instrument market.Instrument
	Tag        string
	UserMsg    string
	Text       string

	ExchOrdID            string
	TickerPlantExchOrdID string
	OriginalOrderNum     string
	InitialSequence      string
	CurrentSequence      string
	OmnibusAccount       string

	Side              market.Side
	OrderType         gateway.OrderType
	OriginalOrderType gateway.OrderType
	Duration          gateway.Duration
	TradeRoute        string
	Status            string
	CompletionReason  string

	Price         float64
	TriggerPrice  float64
	AvgFillPrice  float64
	LastFillPrice float64
	Qty           uint64
	ExecQty       uint64
	LastFillQty   uint64

	LastUpdate uint64

	PendingCancel bool
	Cancelled     bool
	Rejected      bool
	Failed        bool
	Busted        bool
}

func emptyOrder(slot uint32) Order {
	return Order{
		Slot:          slot,
		Price:         math.NaN(),
		TriggerPrice:  math.NaN(),
		AvgFillPrice:  math.NaN(),
		LastFillPrice: math.NaN(),
	}
}

// State derives the lifecycle state from the snapshot.
func (o Order) State() State {
	switch {
	case o.Rejected || o.CompletionReason == gateway.CompletionReject:
		return Rejected
	case o.Failed || o.Busted || o.CompletionReason == gateway.CompletionFailure:
		return Failed
	case o.Cancelled || o.CompletionReason == gateway.CompletionCancel:
		return Cancelled
	case o.Qty > 0 && o.ExecQty >= o.Qty:
		return Filled
	case o.ExecQty > 0:
		return PartiallyFilled
	case o.OrderNum != 0:
		return Acknowledged
	case o.ClientOrderID != 0:
		return Submitted
	}
	return New
}

func sideOf(b gateway.BuySell) market.Side {
	switch b {
	case gateway.Buy:
		return market.Buy
	case gateway.Sell, gateway.SellShort:
		return market.Sell
	}
	return market.Unknown
}

func buySell(s market.Side) gateway.BuySell {
	if s == market.Sell {
		return gateway.Sell
	}
	return gateway.Buy
}

// Request describes an order to submit. NaN Price or TriggerPrice means the
// order has no limit or no stop.
type Request struct {
	Instrument   market.Instrument
	Side         market.Side
	Qty          int64
	Price        float64
	TriggerPrice float64
	Duration     gateway.Duration
	Route        string
	UserMsg      string
}

// Type picks the wire shape from the presence of price and trigger price.
func (r Request) Type() gateway.OrderType {
	noPrice, noTrigger := math.IsNaN(r.Price), math.IsNaN(r.TriggerPrice)
	switch {
	case noPrice && noTrigger:
		return gateway.OrderMarket
	case noPrice:
		return gateway.OrderStopMarket
	case noTrigger:
		return gateway.OrderLimit
	}
	return gateway.OrderStopLimit
}

// Result is the outcome of a submission. Order is nil when the order was not
// acknowledged or completed without a fill.
type Result struct {
	Order    *Order
	TimedOut bool
	Text     string
}
