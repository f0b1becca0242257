package matching

import "errors"

var (
	errUnknownOrdering = errors.New("unknown buy ordering")
	errForeignOrder    = errors.New("order belongs to another stock")
)
