package gateway

import "time"

// ConnectionID names one of the authenticated sub-connections of a session.
type ConnectionID int

const (
	MarketDataConnection ConnectionID = iota + 1
	TradingSystemConnection
	IntradayHistoryConnection
	PnlConnection
	RepositoryConnection
)

func (c ConnectionID) String() string {
	switch c {
	case MarketDataConnection:
		return "market-data"
	case TradingSystemConnection:
		return "trading-system"
	case IntradayHistoryConnection:
		return "intraday-history"
	case PnlConnection:
		return "pnl"
	case RepositoryConnection:
		return "repository"
	}
	return "unknown"
}

type AlertType int

const (
	AlertConnectionOpened AlertType = iota + 1
	AlertConnectionClosed
	AlertConnectionBroken
	AlertLoginComplete
	AlertLoginFailed
	AlertServiceError
	AlertForcedLogout
)

func (a AlertType) String() string {
	switch a {
	case AlertConnectionOpened:
		return "connection opened"
	case AlertConnectionClosed:
		return "connection closed"
	case AlertConnectionBroken:
		return "connection broken"
	case AlertLoginComplete:
		return "login complete"
	case AlertLoginFailed:
		return "login failed"
	case AlertServiceError:
		return "service error"
	case AlertForcedLogout:
		return "forced logout"
	}
	return "unknown"
}

// Origin says whether an event is a live update or part of a history replay.
type Origin int

const (
	Live Origin = iota
	History
)

type BuySell string

const (
	Buy       BuySell = "B"
	Sell      BuySell = "S"
	SellShort BuySell = "SS"
)

type Duration string

const (
	DurationDay Duration = "DAY"
	DurationGTC Duration = "GTC"
	DurationFOK Duration = "FOK"
	DurationIOC Duration = "IOC"
)

type OrderType string

const (
	OrderMarket     OrderType = "MKT"
	OrderLimit      OrderType = "LMT"
	OrderStopMarket OrderType = "STP MKT"
	OrderStopLimit  OrderType = "STP LMT"
)

// Line statuses and completion reasons as they appear on order line updates.
const (
	LineOpen     = "open"
	LineComplete = "complete"

	CompletionFill        = "fill"
	CompletionPartialFill = "PFBC"
	CompletionFailure     = "failure"
	CompletionCancel      = "cancel"
	CompletionReject      = "reject"
)

// Market modes that allow trading.
const (
	ModeOpen    = "Open"
	ModePreOpen = "Pre Open"
)

const RouteUp = "up"

// RpOK is the response code of a successful reply.
const RpOK = 0

// SubscribeFlags selects the market data classes of a subscription.
type SubscribeFlags uint32

const (
	SubPrints SubscribeFlags = 1 << iota
	SubBest
	SubMarketMode
	SubQuotes
)

// Context is the opaque correlation token attached to order requests and
// echoed back on every callback about that order. Zero means none.
type Context uint64

// Stamp converts the vendor's seconds-since-epoch plus microseconds into
// nanoseconds.
func Stamp(ssboe, usecs int) uint64 {
	if ssboe < 0 || usecs < 0 {
		return 0
	}
	return uint64(ssboe)*uint64(time.Second) + uint64(usecs)*uint64(time.Microsecond)
}
