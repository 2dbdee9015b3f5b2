package market

import (
	"strings"

	"github.com/pkg/errors"
)

// Instrument identifies a futures contract on an exchange.
type Instrument struct {
	Ticker   string
	Exchange string
}

// Symbol returns the "TICKER.EXCHANGE" key.
func (i Instrument) Symbol() string {
	return i.Ticker + "." + i.Exchange
}

func (i Instrument) String() string { return i.Symbol() }

// ParseAsset splits "TICKER.EXCHANGE" at the last dot. Tickers may contain
// dots themselves; exchanges never do.
func ParseAsset(asset string) (Instrument, error) {
	pos := strings.LastIndexByte(asset, '.')
	if pos <= 0 || pos == len(asset)-1 {
		return Instrument{}, errors.Errorf("invalid symbol %s. A valid symbol must be end with .<EXCHANGE>", asset)
	}
	return Instrument{Ticker: asset[:pos], Exchange: asset[pos+1:]}, nil
}
