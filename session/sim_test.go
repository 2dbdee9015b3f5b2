package session_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/orders"
	"github.com/rustyeddy/futbridge/session"
	"github.com/rustyeddy/futbridge/sim"
	"github.com/rustyeddy/futbridge/symbols"
)

func simSession(t *testing.T) (*session.Session, *sim.Engine) {
	t.Helper()
	e := sim.NewEngine(sim.Options{
		Account: gateway.Account{FcmID: "SIM", IbID: "SIM", AccountID: "SIM-1"},
		Balance: 25000,
		Seed:    3,
		Instruments: []sim.Instrument{
			{Exchange: "CME", Ticker: "ESZ6", Price: 4500, Tick: 0.25, PointValue: 50},
		},
	})
	s := session.New(e, session.Options{
		User:             "demo",
		Pid:              77,
		QuoteTimeout:     100 * time.Millisecond,
		PnlReplayTimeout: time.Second,
	})
	require.NoError(t, s.Login("", nil))
	t.Cleanup(func() { _ = s.Logout() })
	return s, e
}

func TestSimRoundTrip(t *testing.T) {
	s, _ := simSession(t)

	assert.Equal(t, session.Ready, s.State())
	assert.Equal(t, "SIM-1", s.Account().AccountID)
	route, ok := s.Route("CME")
	require.True(t, ok)
	assert.Equal(t, "sim-cme", route)
	assert.Equal(t, 25000.0, s.PnL().AccountBalance)

	q, err := s.Quote("ESZ6.CME", nil)
	require.NoError(t, err)
	assert.Equal(t, 4499.75, q.BidPrice)
	assert.Equal(t, 4500.0, q.AskPrice)
	assert.True(t, q.Tradable)

	res, err := s.SendOrder(session.OrderRequest{
		Asset: "ESZ6.CME", Side: market.Buy, Qty: 2,
		Price: math.NaN(), TriggerPrice: math.NaN(),
	}, nil, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Equal(t, orders.Filled, res.Order.State())
	assert.Equal(t, uint32(1000), res.Order.OrderNum)

	require.Eventually(t, func() bool {
		return s.Position("ESZ6.CME").Quantity == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 4500.0, s.Position("ESZ6.CME").AveragePrice)

	o, err := s.RetrieveOrder(1000, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), o.ExecQty)
}

func TestSimRestingLimitCancel(t *testing.T) {
	s, _ := simSession(t)
	_, err := s.Quote("ESZ6.CME", nil)
	require.NoError(t, err)

	res, err := s.SendOrder(session.OrderRequest{
		Asset: "ESZ6.CME", Side: market.Sell, Qty: 1,
		Price: 4510, TriggerPrice: math.NaN(), Duration: gateway.DurationGTC,
	}, nil, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Equal(t, orders.Acknowledged, res.Order.State())

	o, err := s.CancelOrder(res.Order.OrderNum, nil)
	require.NoError(t, err)
	assert.Equal(t, orders.Cancelled, o.State())
}

func TestSimUnknownSymbolHasNoData(t *testing.T) {
	s, _ := simSession(t)

	_, err := s.Quote("NQZ6.CME", nil)
	assert.ErrorIs(t, err, symbols.ErrNoData)
}

func TestSimReplayBars(t *testing.T) {
	s, _ := simSession(t)

	start := time.Unix(1700000000, 0)
	candles, err := s.ReplayBars("ESZ6.CME", start, start.Add(time.Hour), 5, 100, nil)
	require.NoError(t, err)
	require.Len(t, candles, 12)
	assert.True(t, candles[0].After(candles[11].Time))
	assert.Equal(t, start.Add(time.Hour).UTC(), candles[0].Time)
}
