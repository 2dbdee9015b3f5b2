package request

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/futbridge/poll"
)

func TestResolveOnlyMatchingKind(t *testing.T) {
	t.Parallel()

	var tr Tracker
	tr.Begin(OpenOrders)

	assert.False(t, tr.Resolve(TradeRoutes, Complete))
	k, s := tr.Current()
	assert.Equal(t, OpenOrders, k)
	assert.Equal(t, AwaitingResults, s)

	assert.True(t, tr.Resolve(OpenOrders, Complete))
	// a duplicate completion is ignored
	assert.False(t, tr.Resolve(OpenOrders, Failed))

	assert.Equal(t, Complete, tr.Wait(poll.Always, time.Second))
	k, s = tr.Current()
	assert.Equal(t, None, k)
	assert.Equal(t, NoRequest, s)
}

func TestWaitAsyncCompletion(t *testing.T) {
	t.Parallel()

	var tr Tracker
	tr.Begin(Bars)
	go func() {
		time.Sleep(5 * time.Millisecond)
		tr.Resolve(Bars, Failed)
	}()
	assert.Equal(t, Failed, tr.Wait(poll.Always, time.Second))
}

func TestWaitTimeoutAndCancel(t *testing.T) {
	t.Parallel()

	var tr Tracker
	tr.Begin(PnlReplay)
	assert.Equal(t, Timeout, tr.Wait(poll.Always, 10*time.Millisecond))

	// late callback after the wait gave up must not resurrect the request
	assert.False(t, tr.Resolve(PnlReplay, Complete))

	tr.Begin(TradeRoutes)
	assert.Equal(t, Failed, tr.Wait(func() bool { return false }, 0))
}

func TestAbort(t *testing.T) {
	t.Parallel()

	var tr Tracker
	tr.Begin(TradeRoutes)
	tr.Abort()
	assert.False(t, tr.Resolve(TradeRoutes, Complete))
	_, s := tr.Current()
	assert.Equal(t, NoRequest, s)
}

func TestStatusStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "timeout", Timeout.String())
	assert.Equal(t, "pnl replay", PnlReplay.String())
	assert.True(t, Failed.Terminal())
	assert.False(t, AwaitingResults.Terminal())
}
