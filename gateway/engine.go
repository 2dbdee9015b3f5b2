package gateway

// Connection points of the four trading sub-connections.
const (
	MarketDataPoint      = "login_agent_tpc"
	TradingSystemPoint   = "login_agent_opc"
	PnlPoint             = "login_agent_pnlc"
	IntradayHistoryPoint = "login_agent_historyc"
)

type LoginParams struct {
	User       string
	Password   string
	AppName    string
	AppVersion string

	MarketDataPoint      string
	TradingSystemPoint   string
	PnlPoint             string
	IntradayHistoryPoint string

	Callbacks Handler
}

// DefaultPoints fills any empty connection point with its default.
func (p *LoginParams) DefaultPoints() {
	if p.MarketDataPoint == "" {
		p.MarketDataPoint = MarketDataPoint
	}
	if p.TradingSystemPoint == "" {
		p.TradingSystemPoint = TradingSystemPoint
	}
	if p.PnlPoint == "" {
		p.PnlPoint = PnlPoint
	}
	if p.IntradayHistoryPoint == "" {
		p.IntradayHistoryPoint = IntradayHistoryPoint
	}
}

type OrderParams struct {
	Account      Account
	Type         OrderType
	Exchange     string
	Ticker       string
	BuySell      BuySell
	Qty          int64
	Price        float64
	TriggerPrice float64
	Duration     Duration
	TradeRoute   string
	Tag          string
	UserMsg      string
	Context      Context
}

// BarParams selects a bar replay. Minute bars are bounded by seconds since
// epoch, daily bars by YYYYMMDD dates.
type BarParams struct {
	Exchange   string
	Ticker     string
	Type       BarType
	Period     int
	StartSsboe int64
	EndSsboe   int64
	StartDate  string
	EndDate    string
}

// Engine is the outbound side of the vendor SDK. A nil error only means the
// request was accepted; its result arrives through the Handler given at login.
type Engine interface {
	Login(LoginParams) error
	Logout() error

	ListTradeRoutes() error
	Subscribe(exchange, ticker string, flags SubscribeFlags) error
	Unsubscribe(exchange, ticker string) error
	ReplayBars(BarParams) error

	SubscribeOrder(Account) error
	ReplayOpenOrders(Account) error
	ReplaySingleOrder(acct Account, orderNum string, ctx Context) error
	SetOrderContext(orderNum string, ctx Context) error
	SendOrder(OrderParams) error
	CancelOrder(acct Account, orderNum string, ctx Context) error

	SubscribePnl(Account) error
	ReplayPnl(Account) error
}

// Handler receives every callback category the engine delivers.
type Handler interface {
	Alert(Alert)
	AccountList([]Account)
	TradeRouteList([]TradeRoute)
	RefData(RefData)
	PriceIncrUpdate(PriceIncr)

	BestBidQuote(Quote)
	BestAskQuote(Quote)
	BestBidAskQuote(bid, ask Quote)
	TradePrint(TradePrint)
	MarketMode(MarketMode)

	LineUpdate(LineUpdate)
	OpenOrderReplay(OpenOrderReplay)
	SingleOrderReplay(SingleOrderReplay)
	OrderReport(Report)

	Bar(Bar)
	BarReplay(BarReplay)

	PnlUpdate(PnlInfo)
	PnlReplay(PnlReplay)
}
