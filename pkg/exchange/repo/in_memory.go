package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/shopspring/decimal"
)

// InMemoryStore keeps exchange state in process memory. Every read hands out copies, so
// callers may mutate results freely.
type InMemoryStore struct {
	mu sync.RWMutex

	seq          int64
	orders       map[string]*model.Order
	orderSeq     map[string]int64
	stocks       map[string]*model.Stock
	transactions []*model.Transaction
	samples      []*model.PriceSample
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		orders:   make(map[string]*model.Order),
		orderSeq: make(map[string]int64),
		stocks:   make(map[string]*model.Stock),
	}
}

func (s *InMemoryStore) Order() IOrder               { return s }
func (s *InMemoryStore) Stock() IStock               { return s }
func (s *InMemoryStore) Transaction() ITransaction   { return s }
func (s *InMemoryStore) PriceHistory() IPriceHistory { return s }

func (s *InMemoryStore) CreateOrder(_ context.Context, record *model.Order) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.orders[record.ID] = record.Clone()
	s.orderSeq[record.ID] = s.seq
	return record, nil
}

func (s *InMemoryStore) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return order.Clone(), nil
}

func (s *InMemoryStore) FetchActiveBuyOrders(_ context.Context, now time.Time) ([]*model.Order, error) {
	return s.activeOrders(now, func(o *model.Order) bool {
		return o.Side == model.OrderSideBuying
	}), nil
}

func (s *InMemoryStore) FetchActiveSellOrders(_ context.Context, stockID string, maxPrice decimal.Decimal, now time.Time) ([]*model.Order, error) {
	return s.activeOrders(now, func(o *model.Order) bool {
		return o.Side == model.OrderSideSelling && o.StockID == stockID && o.LimitPrice.LessThanOrEqual(maxPrice)
	}), nil
}

func (s *InMemoryStore) activeOrders(now time.Time, match func(*model.Order) bool) []*model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*model.Order
	for _, o := range s.orders {
		if o.IsActive(now) && match(o) {
			orders = append(orders, o.Clone())
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return s.orderSeq[orders[i].ID] < s.orderSeq[orders[j].ID]
	})
	return orders
}

func (s *InMemoryStore) RecordTrade(_ context.Context, buy, sell *model.Order, amount int64, unitPrice decimal.Decimal, executedAt time.Time) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storedBuy, storedSell := s.orders[buy.ID], s.orders[sell.ID]
	for _, o := range []*model.Order{storedBuy, storedSell} {
		if o == nil || o.IsClosed() || o.RemainingAmount < amount {
			return nil, ErrTradeConflict
		}
	}

	storedBuy.Fill(amount, executedAt)
	storedSell.Fill(amount, executedAt)

	record := model.NewTransaction(buy, sell, amount, unitPrice, executedAt)
	stored := *record
	s.transactions = append(s.transactions, &stored)
	return record, nil
}

func (s *InMemoryStore) FetchRecentTradesForPricing(_ context.Context, stockID string, maxUnits int64) ([]*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*model.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if t := s.transactions[i]; t.StockID == stockID {
			candidates = append(candidates, t)
		}
	}
	// newest first; for equal timestamps the later insert wins
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.After(candidates[j].Timestamp)
	})

	var (
		trades []*model.Transaction
		units  int64
	)
	for _, t := range candidates {
		units += t.Amount
		c := *t
		trades = append(trades, &c)
		if maxUnits > 0 && units >= maxUnits {
			break
		}
	}
	return trades, nil
}

func (s *InMemoryStore) Transactions() []*model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		c := *t
		out = append(out, &c)
	}
	return out
}

func (s *InMemoryStore) CreateStock(_ context.Context, record *model.Stock) (*model.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *record
	s.stocks[record.ID] = &c
	return record, nil
}

func (s *InMemoryStore) GetStock(_ context.Context, id string) (*model.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.stocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *stored
	return &c, nil
}

func (s *InMemoryStore) FetchAllStocks(_ context.Context) ([]*model.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stocks := make([]*model.Stock, 0, len(s.stocks))
	for _, st := range s.stocks {
		c := *st
		stocks = append(stocks, &c)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].ID < stocks[j].ID })
	return stocks, nil
}

func (s *InMemoryStore) PersistStock(_ context.Context, stock *model.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.stocks[stock.ID]
	if !ok {
		return ErrNotFound
	}
	stored.CurrentPrice = stock.CurrentPrice
	stored.PriceChangeRatio = stock.PriceChangeRatio
	stored.UpdatedAt = stock.UpdatedAt
	return nil
}

func (s *InMemoryStore) PersistPriceChangeRatio(_ context.Context, stock *model.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.stocks[stock.ID]
	if !ok {
		return ErrNotFound
	}
	if !stored.CurrentPrice.Equal(stock.CurrentPrice) {
		return ErrStalePrice
	}
	stored.PriceChangeRatio = stock.PriceChangeRatio
	stored.UpdatedAt = stock.UpdatedAt
	return nil
}

func (s *InMemoryStore) FetchPriceSampleBefore(_ context.Context, stockID string, before time.Time) (*model.PriceSample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.PriceSample
	for _, sample := range s.samples {
		if sample.StockID != stockID || !sample.SampledAt.Before(before) {
			continue
		}
		if latest == nil || !sample.SampledAt.Before(latest.SampledAt) {
			latest = sample
		}
	}
	if latest == nil {
		return nil, false, nil
	}
	c := *latest
	return &c, true, nil
}

func (s *InMemoryStore) RecordPriceSample(_ context.Context, sample *model.PriceSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	c := *sample
	c.ID = s.seq
	s.samples = append(s.samples, &c)
	return nil
}
