package repo

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrTradeConflict = errors.New("order state changed, trade rejected")
	ErrStalePrice    = errors.New("stock price changed since it was read")
)
