package broker

import (
	"math"
	"time"

	"github.com/rustyeddy/futbridge/account"
	"github.com/rustyeddy/futbridge/gateway"
)

const DefaultWait = 60 * time.Second

// Price types the host can select.
const (
	PriceAsk   = 0
	PriceTrade = 2
)

// Settings are the per-login order defaults the host adjusts through
// commands before each call.
type Settings struct {
	// Amount scales the lot count of the next order.
	Amount float64
	// Limit is the limit price of the next order; NaN sends a market order.
	Limit     float64
	Duration  gateway.Duration
	Wait      time.Duration
	PriceType int
	VolType   int

	OrderText  string
	Symbol     string
	Multiplier float64
	Window     uintptr

	// LastPosition is what the last position query returned; the average
	// entry query reads it.
	LastPosition account.Position
}

func (s *Settings) Reset(d gateway.Duration, wait time.Duration) {
	*s = Settings{
		Amount:   1,
		Limit:    math.NaN(),
		Duration: d,
		Wait:     wait,
	}
}

// next clears the per-order values once an order has been sent.
func (s *Settings) next() {
	s.Amount = 1
	s.Limit = math.NaN()
}
