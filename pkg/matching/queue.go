package matching

import (
	"github.com/gammazero/deque"
	"github.com/joripage/stock-exchange/pkg/exchange/model"
)

// orderQueue is one side of a stock's candidates, consumed from the front.
type orderQueue struct {
	q deque.Deque[*model.Order]
}

func newOrderQueue(orders []*model.Order) *orderQueue {
	oq := &orderQueue{}
	for _, o := range orders {
		oq.q.PushBack(o)
	}
	return oq
}

func (oq *orderQueue) Len() int {
	return oq.q.Len()
}

func (oq *orderQueue) Front() *model.Order {
	return oq.q.Front()
}

func (oq *orderQueue) Drop() *model.Order {
	return oq.q.PopFront()
}
