package model

import "errors"

var (
	errMissingOrderID    = errors.New("order id is empty")
	errMissingOwner      = errors.New("order has no owner")
	errMissingStock      = errors.New("order has no stock")
	errInvalidSide       = errors.New("invalid order side")
	errInvalidPriceType  = errors.New("invalid order price type")
	errInvalidLimitPrice = errors.New("limit price must be positive")
	errInvalidAmount     = errors.New("remaining amount out of range")
)
