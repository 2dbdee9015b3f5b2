// Package account reconciles P&L and position updates, live or replayed, into
// per-account and per-asset snapshots.
//
// Every update carries an event time. A snapshot only moves forward: an event
// older than what is stored is dropped. Fields are merged one by one under the
// event's clear/use/keep directive.
package account

import (
	"maps"

	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/metrics"
	"github.com/rustyeddy/futbridge/snapshot"
)

type PnL struct {
	Timestamp      uint64
	PnL            float64
	Realized       float64
	Unrealized     float64
	AccountBalance float64
}

type Position struct {
	Timestamp    uint64
	AveragePrice float64
	Quantity     int64
	BuyQty       int64
	SellQty      int64
}

// Flat reports whether no contracts are held.
func (p Position) Flat() bool { return p.Quantity == 0 }

type Reconciler struct {
	log       *zap.Logger
	pnl       snapshot.Value[PnL]
	positions snapshot.Value[map[string]*snapshot.Value[Position]]
}

func NewReconciler(log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reconciler{log: log}
	r.positions.Store(map[string]*snapshot.Value[Position]{})
	return r
}

// Track starts following positions of asset. Updates for untracked assets
// are dropped.
func (r *Reconciler) Track(asset string) {
	r.positions.Update(func(cur map[string]*snapshot.Value[Position]) (map[string]*snapshot.Value[Position], bool) {
		if _, ok := cur[asset]; ok {
			return cur, false
		}
		next := maps.Clone(cur)
		next[asset] = snapshot.New(Position{})
		return next, true
	})
}

func (r *Reconciler) Tracked(asset string) bool {
	_, ok := r.positions.Load()[asset]
	return ok
}

func (r *Reconciler) PnL() PnL { return r.pnl.Load() }

// Position returns the position of asset, zero when untracked.
func (r *Reconciler) Position(asset string) Position {
	if v, ok := r.positions.Load()[asset]; ok {
		return v.Load()
	}
	return Position{}
}

// MergePnL applies the P&L fields of info to p.
func MergePnL(p PnL, info gateway.PnlInfo, ts uint64) PnL {
	p.Timestamp = ts
	p.Unrealized = info.OpenPnl.Apply(p.Unrealized)
	p.Realized = info.ClosedPnl.Apply(p.Realized)
	p.PnL = p.Realized + p.Unrealized
	p.AccountBalance = info.AccountBalance.Apply(p.AccountBalance)
	return p
}

// MergePosition applies the position fields of info to p.
func MergePosition(p Position, info gateway.PnlInfo, ts uint64) Position {
	p.Timestamp = ts
	p.AveragePrice = info.AvgOpenFillPrice.Apply(p.AveragePrice)
	p.Quantity = info.Position.Apply(p.Quantity)
	p.BuyQty = info.BuyQty.Apply(p.BuyQty)
	p.SellQty = info.SellQty.Apply(p.SellQty)
	return p
}

// Apply folds one update in. Account level updates (no ticker) move the
// account P&L; instrument updates move that instrument's position. It
// reports whether anything changed.
func (r *Reconciler) Apply(info gateway.PnlInfo) bool {
	ts := gateway.Stamp(info.Ssboe, info.Usecs)

	asset := info.Symbol()
	if asset == "" {
		_, ok := r.pnl.Update(func(cur PnL) (PnL, bool) {
			if cur.Timestamp > ts {
				return cur, false
			}
			return MergePnL(cur, info, ts), true
		})
		if !ok {
			metrics.Ignored.WithLabelValues("pnl", "stale").Inc()
		}
		return ok
	}

	v, tracked := r.positions.Load()[asset]
	if !tracked {
		metrics.Ignored.WithLabelValues("pnl", "untracked").Inc()
		r.log.Debug("position for untracked asset", zap.String("symbol", asset))
		return false
	}
	_, ok := v.Update(func(cur Position) (Position, bool) {
		if cur.Timestamp > ts {
			return cur, false
		}
		return MergePosition(cur, info, ts), true
	})
	if !ok {
		metrics.Ignored.WithLabelValues("pnl", "stale").Inc()
	}
	return ok
}

// ApplyReplay folds every item of a replay batch and calls applied, when
// set, for each item that changed state.
func (r *Reconciler) ApplyReplay(rep gateway.PnlReplay, applied func(gateway.PnlInfo)) int {
	n := 0
	for _, info := range rep.Items {
		if !r.Apply(info) {
			continue
		}
		n++
		if applied != nil {
			applied(info)
		}
	}
	return n
}
