package matching

import (
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
)

// stockResult is what one stock's matching task hands back to MatchRun.
type stockResult struct {
	stockID string
	trades  []*model.Transaction
	touched map[string]*model.Order
	order   []string

	withdrawn    int
	failedTrades int
	skipped      int
	failed       bool
}

func newStockResult(stockID string) *stockResult {
	return &stockResult{
		stockID: stockID,
		touched: make(map[string]*model.Order),
	}
}

func (r *stockResult) record(trade *model.Transaction, orders ...*model.Order) {
	r.trades = append(r.trades, trade)
	for _, o := range orders {
		if _, ok := r.touched[o.ID]; !ok {
			r.order = append(r.order, o.ID)
		}
		r.touched[o.ID] = o
	}
}

// RunReport summarises one MatchRun.
type RunReport struct {
	StartedAt time.Time
	Stocks    int
	Trades    []*model.Transaction
	// Orders holds the post-run state of every order that took part in a trade.
	Orders []*model.Order

	Withdrawn     int
	FailedTrades  int
	FailedStocks  int
	SkippedOrders int
}

func newRunReport(startedAt time.Time, results []*stockResult) *RunReport {
	report := &RunReport{
		StartedAt: startedAt,
		Stocks:    len(results),
	}
	for _, r := range results {
		report.Trades = append(report.Trades, r.trades...)
		for _, id := range r.order {
			report.Orders = append(report.Orders, r.touched[id].Clone())
		}
		report.Withdrawn += r.withdrawn
		report.FailedTrades += r.failedTrades
		report.SkippedOrders += r.skipped
		if r.failed {
			report.FailedStocks++
		}
	}
	return report
}

func (r *RunReport) TradedAmount() int64 {
	var total int64
	for _, t := range r.Trades {
		total += t.Amount
	}
	return total
}

func (r *RunReport) Order(id string) (*model.Order, bool) {
	for _, o := range r.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}
