package pricing

import "errors"

var (
	errUnknownFormula  = errors.New("unknown price formula")
	errNoTrades        = errors.New("no trades to price from")
	errInvalidLookback = errors.New("lookback must be positive")
)
