// journal/journal.go
package journal

import (
	"time"

	"github.com/rustyeddy/futbridge/account"
	"github.com/rustyeddy/futbridge/orders"
)

// Run is one bridge session, from login until the journal is closed.
type Run struct {
	RunID   string
	Started time.Time
	Ended   time.Time
	User    string
	Server  string
}

// OrderRecord is one applied order update.
type OrderRecord struct {
	RunID         string
	ClientOrderID uint64
	OrderNum      uint32
	Symbol        string
	Side          string
	Type          string
	Duration      string
	Status        string
	Completion    string
	State         string
	Price         float64
	TriggerPrice  float64
	AvgFillPrice  float64
	Qty           uint64
	ExecQty       uint64
	Text          string
	Time          time.Time
}

// FillRecord is one execution.
type FillRecord struct {
	RunID         string
	ClientOrderID uint64
	OrderNum      uint32
	Symbol        string
	Side          string
	Price         float64
	Qty           uint64
	AvgFillPrice  float64
	ExecQty       uint64
	Time          time.Time
}

// PnLRecord is an account P&L snapshot (empty Symbol) or a position snapshot.
type PnLRecord struct {
	RunID      string
	Symbol     string
	Time       time.Time
	PnL        float64
	Realized   float64
	Unrealized float64
	Balance    float64
	Quantity   int64
	AvgPrice   float64
}

// Journal records everything a session applies. It satisfies
// session.Recorder.
type Journal interface {
	RecordOrder(orders.Order) error
	RecordFill(orders.Order) error
	RecordPnL(account.PnL) error
	RecordPosition(asset string, p account.Position) error
	Close() error
}

func stampTime(ns uint64) time.Time {
	if ns == 0 {
		return time.Now().UTC()
	}
	return time.Unix(0, int64(ns)).UTC()
}

func orderRecord(run string, o orders.Order) OrderRecord {
	return OrderRecord{
		RunID:         run,
		ClientOrderID: o.ClientOrderID,
		OrderNum:      o.OrderNum,
		Symbol:        o.Instrument.Symbol(),
		Side:          o.Side.String(),
		Type:          string(o.OrderType),
		Duration:      string(o.Duration),
		Status:        o.Status,
		Completion:    o.CompletionReason,
		State:         o.State().String(),
		Price:         o.Price,
		TriggerPrice:  o.TriggerPrice,
		AvgFillPrice:  o.AvgFillPrice,
		Qty:           o.Qty,
		ExecQty:       o.ExecQty,
		Text:          o.Text,
		Time:          stampTime(o.LastUpdate),
	}
}

func fillRecord(run string, o orders.Order) FillRecord {
	return FillRecord{
		RunID:         run,
		ClientOrderID: o.ClientOrderID,
		OrderNum:      o.OrderNum,
		Symbol:        o.Instrument.Symbol(),
		Side:          o.Side.String(),
		Price:         o.LastFillPrice,
		Qty:           o.LastFillQty,
		AvgFillPrice:  o.AvgFillPrice,
		ExecQty:       o.ExecQty,
		Time:          stampTime(o.LastUpdate),
	}
}
