// Package request tracks the one non-order request a session may have in
// flight: trade route listing, open order replay, P&L replay or bar replay.
//
// Callers must not begin a second request while one is outstanding. The
// tracker does not enforce this; it only makes sure a callback for a
// different kind of request cannot resolve the one being waited on.
package request

import (
	"time"

	"github.com/rustyeddy/futbridge/poll"
	"github.com/rustyeddy/futbridge/snapshot"
)

type Status int

const (
	NoRequest Status = iota
	AwaitingResults
	Complete
	Failed
	Timeout
)

func (s Status) String() string {
	switch s {
	case NoRequest:
		return "no request"
	case AwaitingResults:
		return "awaiting results"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	case Timeout:
		return "timeout"
	}
	return "unknown"
}

// Terminal reports whether s ends a request.
func (s Status) Terminal() bool {
	return s == Complete || s == Failed || s == Timeout
}

type Kind int

const (
	None Kind = iota
	TradeRoutes
	OpenOrders
	PnlReplay
	Bars
)

func (k Kind) String() string {
	switch k {
	case TradeRoutes:
		return "trade routes"
	case OpenOrders:
		return "open orders"
	case PnlReplay:
		return "pnl replay"
	case Bars:
		return "bars"
	}
	return "none"
}

type state struct {
	kind   Kind
	status Status
}

type Tracker struct {
	s snapshot.Value[state]
}

// Begin marks a request of kind k as awaiting results. Call it before the
// outbound call so a fast callback cannot be lost.
func (t *Tracker) Begin(k Kind) {
	t.s.Store(state{kind: k, status: AwaitingResults})
}

// Abort drops the outstanding request after its outbound call was rejected.
func (t *Tracker) Abort() {
	t.s.Store(state{})
}

// Resolve moves an awaiting request of kind k to status. It returns false,
// and changes nothing, when no request of that kind is awaiting results.
func (t *Tracker) Resolve(k Kind, status Status) bool {
	_, ok := t.s.Update(func(cur state) (state, bool) {
		if cur.kind != k || cur.status != AwaitingResults {
			return cur, false
		}
		cur.status = status
		return cur, true
	})
	return ok
}

// Current returns the kind and status of the tracked request.
func (t *Tracker) Current() (Kind, Status) {
	s := t.s.Load()
	return s.kind, s.status
}

// Wait blocks until the request reaches a terminal status, the host cancels
// (Failed) or timeout elapses (Timeout). The tracker is reset to NoRequest
// before returning. A timeout of zero waits without a bound.
func (t *Tracker) Wait(progress poll.Progress, timeout time.Duration) Status {
	out := poll.Until(progress, timeout, func() bool {
		return t.s.Load().status.Terminal()
	})

	var final Status
	switch out {
	case poll.Cancelled:
		final = Failed
	case poll.TimedOut:
		final = Timeout
	default:
		final = t.s.Load().status
	}
	t.s.Store(state{})
	return final
}
