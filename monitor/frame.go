// Package monitor publishes the state of a session as JSON frames over a
// WebSocket, and reads them back.
package monitor

import (
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/rustyeddy/futbridge/orders"
	"github.com/rustyeddy/futbridge/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Frame is one snapshot pushed to every client. Prices that are not known
// are omitted.
type Frame struct {
	Seq     uint64       `json:"seq"`
	Time    time.Time    `json:"time"`
	State   string       `json:"state"`
	Account string       `json:"account,omitempty"`
	Symbols []SymbolView `json:"symbols"`
	Orders  []OrderView  `json:"orders"`
	PnL     PnLView      `json:"pnl"`
}

type SymbolView struct {
	Symbol   string   `json:"symbol"`
	Ready    bool     `json:"ready"`
	Tradable bool     `json:"tradable"`
	Bid      *float64 `json:"bid,omitempty"`
	BidQty   int64    `json:"bid_qty"`
	Ask      *float64 `json:"ask,omitempty"`
	AskQty   int64    `json:"ask_qty"`
	Last     *float64 `json:"last,omitempty"`
	Position int64    `json:"position"`
	AvgPrice *float64 `json:"avg_price,omitempty"`
}

type OrderView struct {
	OrderNum uint32   `json:"order_num"`
	Symbol   string   `json:"symbol"`
	Side     string   `json:"side"`
	Type     string   `json:"type"`
	Qty      uint64   `json:"qty"`
	Filled   uint64   `json:"filled"`
	Price    *float64 `json:"price,omitempty"`
	State    string   `json:"state"`
}

type PnLView struct {
	PnL        float64 `json:"pnl"`
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
	Balance    float64 `json:"balance"`
}

func num(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// SessionSource builds frames from a live session. Only working orders are
// listed.
func SessionSource(s *session.Session) func() Frame {
	return func() Frame {
		f := Frame{
			Time:    time.Now().UTC(),
			State:   s.State().String(),
			Account: s.Account().AccountID,
			Symbols: []SymbolView{},
			Orders:  []OrderView{},
		}
		for _, sym := range s.Symbols().All() {
			top, trade := sym.Top(), sym.LastTrade()
			pos := s.Position(sym.Key())
			v := SymbolView{
				Symbol:   sym.Key(),
				Ready:    sym.IsReady(),
				Tradable: sym.Tradable(),
				Bid:      num(top.BidPrice),
				BidQty:   top.BidQty,
				Ask:      num(top.AskPrice),
				AskQty:   top.AskQty,
				Last:     num(trade.Price),
				Position: pos.Quantity,
			}
			if !pos.Flat() {
				v.AvgPrice = num(pos.AveragePrice)
			}
			f.Symbols = append(f.Symbols, v)
		}
		for _, o := range s.Orders().Orders() {
			if o.OrderNum == 0 || o.State().Terminal() {
				continue
			}
			f.Orders = append(f.Orders, orderView(o))
		}
		p := s.PnL()
		f.PnL = PnLView{PnL: p.PnL, Realized: p.Realized, Unrealized: p.Unrealized, Balance: p.AccountBalance}
		return f
	}
}

func orderView(o orders.Order) OrderView {
	return OrderView{
		OrderNum: o.OrderNum,
		Symbol:   o.Instrument.Symbol(),
		Side:     o.Side.String(),
		Type:     string(o.OrderType),
		Qty:      o.Qty,
		Filled:   o.ExecQty,
		Price:    num(o.Price),
		State:    o.State().String(),
	}
}
