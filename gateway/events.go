package gateway

import "strings"

type Alert struct {
	Connection ConnectionID
	Type       AlertType
	Code       int
	Text       string
}

type Account struct {
	FcmID       string
	IbID        string
	AccountID   string
	AccountName string
}

type TradeRoute struct {
	FcmID    string
	IbID     string
	Exchange string
	Route    string
	Status   string
}

type RefData struct {
	Exchange    string
	Ticker      string
	ProductCode string
	Description string
	Tradable    bool
	PointValue  float64
}

type PriceIncr struct {
	Exchange  string
	Ticker    string
	Increment float64
}

// Quote is one side of the best bid or offer. Price and size carry separate
// presence flags; an absent field must leave the previous value alone.
type Quote struct {
	Exchange string
	Ticker   string
	Origin   Origin
	Price    float64
	HasPrice bool
	Size     int64
	HasSize  bool
}

type TradePrint struct {
	Exchange        string
	Ticker          string
	Origin          Origin
	Price           float64
	HasPrice        bool
	Size            int64
	Aggressor       BuySell
	VolumeBought    int64
	HasVolumeBought bool
	VolumeSold      int64
	HasVolumeSold   bool
	Ssboe           int
	Usecs           int
}

type MarketMode struct {
	Exchange string
	Ticker   string
	Mode     string
	Event    string
	Reason   string
}

// Tradable reports whether the mode allows order entry.
func (m MarketMode) Tradable() bool {
	return m.Mode == ModeOpen || m.Mode == ModePreOpen
}

// LineUpdate is a full snapshot of one order line, live or replayed.
type LineUpdate struct {
	Origin  Origin
	RpCode  int
	Context Context
	Account Account

	Exchange string
	Ticker   string
	OrderNum string
	Tag      string
	UserMsg  string

	ExchOrdID            string
	TickerPlantExchOrdID string
	OriginalOrderNum     string
	InitialSequence      string
	CurrentSequence      string
	OmnibusAccount       string

	BuySell           BuySell
	OrderType         OrderType
	OriginalOrderType OrderType
	Duration          Duration
	TradeRoute        string
	Status            string
	CompletionReason  string
	Text              string

	Price           float64
	HasPrice        bool
	AvgFillPrice    float64
	HasAvgFillPrice bool
	TriggerPrice    float64
	HasTriggerPrice bool
	QuantityToFill  int64
	Filled          int64

	Ssboe int
	Usecs int
}

type OpenOrderReplay struct {
	RpCode int
	Lines  []LineUpdate
}

type SingleOrderReplay struct {
	RpCode   int
	OrderNum string
	Context  Context
}

type ReportKind int

const (
	ReportFill ReportKind = iota + 1
	ReportCancel
	ReportReject
	ReportFailure
	ReportStatus
	ReportTrigger
	ReportBust
	ReportModify
	ReportNotCancelled
	ReportNotModified
	ReportOther
)

var reportNames = map[ReportKind]string{
	ReportFill:         "fill",
	ReportCancel:       "cancel",
	ReportReject:       "reject",
	ReportFailure:      "failure",
	ReportStatus:       "status",
	ReportTrigger:      "trigger",
	ReportBust:         "bust",
	ReportModify:       "modify",
	ReportNotCancelled: "not cancelled",
	ReportNotModified:  "not modified",
	ReportOther:        "other",
}

func (k ReportKind) String() string {
	if s, ok := reportNames[k]; ok {
		return s
	}
	return "unknown"
}

// Report is an order report. Fill fields are only meaningful for ReportFill.
type Report struct {
	Kind    ReportKind
	Origin  Origin
	Context Context

	Exchange  string
	Ticker    string
	OrderNum  string
	Tag       string
	UserMsg   string
	ExchOrdID string
	Text      string

	FillPrice       float64
	HasFillPrice    bool
	AvgFillPrice    float64
	HasAvgFillPrice bool
	FillSize        int64
	TotalFilled     int64

	Ssboe int
	Usecs int
}

// PnlInfo is a P&L and position update. An empty Ticker addresses the account
// as a whole; otherwise it addresses one instrument.
type PnlInfo struct {
	Account  Account
	Exchange string
	Ticker   string
	Ssboe    int
	Usecs    int

	OpenPnl          Field[float64]
	ClosedPnl        Field[float64]
	AccountBalance   Field[float64]
	AvgOpenFillPrice Field[float64]
	Position         Field[int64]
	BuyQty           Field[int64]
	SellQty          Field[int64]
}

// Symbol returns the "TICKER.EXCHANGE" key of the instrument, or "" for an
// account level update.
func (p PnlInfo) Symbol() string {
	if p.Ticker == "" {
		return ""
	}
	return strings.Join([]string{p.Ticker, p.Exchange}, ".")
}

type PnlReplay struct {
	RpCode int
	Items  []PnlInfo
}

type BarType int

const (
	MinuteBar BarType = iota + 1
	DailyBar
)

// Bar is one replayed bar.
type Bar struct {
	Exchange   string
	Ticker     string
	Type       BarType
	StartSsboe int64
	EndSsboe   int64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
}

type BarReplay struct {
	RpCode   int
	Exchange string
	Ticker   string
	Type     BarType
}
