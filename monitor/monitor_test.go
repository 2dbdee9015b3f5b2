package monitor

import (
	"context"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/futbridge/gateway"
	"github.com/rustyeddy/futbridge/market"
	"github.com/rustyeddy/futbridge/session"
	"github.com/rustyeddy/futbridge/sim"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func staticSource() Frame {
	return Frame{
		State:   "ready",
		Symbols: []SymbolView{{Symbol: "ESZ6.CME", Bid: num(4500), Ask: num(math.NaN())}},
		Orders:  []OrderView{},
	}
}

func TestServerPushesFrames(t *testing.T) {
	srv := NewServer(staticSource, time.Hour, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(ts))
	require.NoError(t, err)

	f, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, "ready", f.State)
	require.Len(t, f.Symbols, 1)
	require.NotNil(t, f.Symbols[0].Bid)
	assert.Equal(t, 4500.0, *f.Symbols[0].Bid)
	assert.Nil(t, f.Symbols[0].Ask)

	require.Eventually(t, func() bool { return srv.Clients() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, srv.Publish())
	f, err = c.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return srv.Clients() == 0 }, time.Second, time.Millisecond)
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	srv := NewServer(staticSource, 5*time.Millisecond, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(done)
	}()

	c, err := Dial(context.Background(), wsURL(ts))
	require.NoError(t, err)
	defer c.Close()

	var last uint64
	for last < 3 {
		f, err := c.Next()
		require.NoError(t, err)
		assert.Greater(t, f.Seq, last)
		last = f.Seq
	}

	cancel()
	<-done
	for {
		if _, err := c.Next(); err != nil {
			break
		}
	}
	assert.Zero(t, srv.Clients())
}

func TestSessionSource(t *testing.T) {
	e := sim.NewEngine(sim.Options{
		Account:     gateway.Account{FcmID: "SIM", IbID: "SIM", AccountID: "SIM-9"},
		Balance:     1000,
		Instruments: []sim.Instrument{{Exchange: "CME", Ticker: "ESZ6", Price: 4500, Tick: 0.25, PointValue: 50}},
	})
	s := session.New(e, session.Options{User: "demo"})
	require.NoError(t, s.Login("", nil))
	defer s.Logout()

	_, err := s.Quote("ESZ6.CME", nil)
	require.NoError(t, err)
	res, err := s.SendOrder(session.OrderRequest{
		Asset: "ESZ6.CME", Side: market.Buy, Qty: 1,
		Price: 4400, TriggerPrice: math.NaN(), Duration: gateway.DurationDay,
	}, nil, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, res.Order)

	f := SessionSource(s)()
	assert.Equal(t, "ready", f.State)
	assert.Equal(t, "SIM-9", f.Account)
	require.Len(t, f.Symbols, 1)
	assert.True(t, f.Symbols[0].Ready)
	assert.Equal(t, 4499.75, *f.Symbols[0].Bid)
	require.Len(t, f.Orders, 1)
	assert.Equal(t, uint32(1000), f.Orders[0].OrderNum)
	assert.Equal(t, "buy", f.Orders[0].Side)
	assert.Equal(t, 4400.0, *f.Orders[0].Price)
	assert.Equal(t, 1000.0, f.PnL.Balance)

	_, err = json.Marshal(f)
	assert.NoError(t, err)
}
