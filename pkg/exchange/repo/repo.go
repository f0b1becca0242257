package repo

import (
	"gorm.io/gorm"
)

type IRepo interface {
	Order() IOrder
	Stock() IStock
	Transaction() ITransaction
	PriceHistory() IPriceHistory
}

type Repo struct {
	exchangeDB *gorm.DB
}

func NewRepo(exchangeDB *gorm.DB) IRepo {
	return &Repo{
		exchangeDB: exchangeDB,
	}
}

func (r *Repo) Order() IOrder {
	return NewOrderSQLRepo(r.exchangeDB)
}

func (r *Repo) Stock() IStock {
	return NewStockSQLRepo(r.exchangeDB)
}

func (r *Repo) Transaction() ITransaction {
	return NewTransactionSQLRepo(r.exchangeDB)
}

func (r *Repo) PriceHistory() IPriceHistory {
	return NewPriceHistorySQLRepo(r.exchangeDB)
}
