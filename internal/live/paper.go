package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/intradayrun/internal/market"
)

// PaperBroker is an in-memory broker for dry runs. Quotes come from the
// loaded bar series; marketable orders fill immediately, the rest sit on a
// resting book re-checked against the last price on every quote.
type PaperBroker struct {
	mu      sync.Mutex
	fine    map[string]market.Series
	coarse  map[string]market.Series
	resting []restingOrder
	events  chan OrderEvent
	nextID  int
}

type restingOrder struct {
	id    string
	order Order
}

// NewPaperBroker creates an empty paper broker.
func NewPaperBroker() *PaperBroker {
	return &PaperBroker{
		fine:   make(map[string]market.Series),
		coarse: make(map[string]market.Series),
		events: make(chan OrderEvent, 64),
	}
}

// Load registers a symbol's bar series.
func (p *PaperBroker) Load(symbol string, fine, coarse market.Series) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fine[symbol] = fine
	p.coarse[symbol] = coarse
}

// Bars implements MarketData. Sub-minute intervals serve the fine series.
func (p *PaperBroker) Bars(_ context.Context, symbol string, interval time.Duration, lookback int) (market.Series, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var series market.Series
	if interval < time.Minute {
		series = p.fine[symbol]
	} else {
		series = p.coarse[symbol]
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no bars loaded for %s", symbol)
	}
	return series.Tail(lookback), nil
}

// Quote implements MarketData, synthesizing a spread around the last close.
// Fetching a quote also marks the resting book to the last price.
func (p *PaperBroker) Quote(_ context.Context, symbol string) (market.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.lastPriceLocked(symbol)
	if !ok {
		return market.Quote{}, fmt.Errorf("no bars loaded for %s", symbol)
	}
	p.tickLocked(symbol, last)
	return market.Quote{
		Bid:  last * 0.999,
		Ask:  last * 1.001,
		Last: last,
	}, nil
}

// Submit implements OrderExecutor.
func (p *PaperBroker) Submit(_ context.Context, order Order) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.lastPriceLocked(order.Symbol)
	if !ok {
		return "", fmt.Errorf("no bars loaded for %s", order.Symbol)
	}

	p.nextID++
	id := fmt.Sprintf("paper-%d", p.nextID)

	if price, filled := marketableAt(order, last); filled {
		p.emitLocked(OrderEvent{
			OrderID: id, Symbol: order.Symbol, Status: OrderFilled,
			FilledQty: order.Quantity, FillPrice: price, At: time.Now(),
		})
	} else {
		p.resting = append(p.resting, restingOrder{id: id, order: order})
	}
	return id, nil
}

// Cancel implements OrderExecutor. Cancelling an unknown or already-filled
// order is a no-op, matching broker behavior.
func (p *PaperBroker) Cancel(_ context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(orderID, true)
	return nil
}

// Events implements OrderExecutor.
func (p *PaperBroker) Events() <-chan OrderEvent { return p.events }

func (p *PaperBroker) lastPriceLocked(symbol string) (float64, bool) {
	series := p.fine[symbol]
	if len(series) == 0 {
		series = p.coarse[symbol]
	}
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1].Close, true
}

// tickLocked fills resting orders that became marketable and cancels their
// OCA siblings.
func (p *PaperBroker) tickLocked(symbol string, last float64) {
	for i := 0; i < len(p.resting); i++ {
		r := p.resting[i]
		if r.order.Symbol != symbol {
			continue
		}
		price, filled := marketableAt(r.order, last)
		if !filled {
			continue
		}
		p.resting = append(p.resting[:i], p.resting[i+1:]...)
		i--
		p.emitLocked(OrderEvent{
			OrderID: r.id, Symbol: symbol, Status: OrderFilled,
			FilledQty: r.order.Quantity, FillPrice: price, At: time.Now(),
		})
		if r.order.OCAGroup != "" {
			p.cancelGroupLocked(r.order.OCAGroup, r.id)
		}
	}
}

func (p *PaperBroker) cancelGroupLocked(group, exceptID string) {
	for i := 0; i < len(p.resting); i++ {
		r := p.resting[i]
		if r.order.OCAGroup != group || r.id == exceptID {
			continue
		}
		p.resting = append(p.resting[:i], p.resting[i+1:]...)
		i--
		p.emitLocked(OrderEvent{
			OrderID: r.id, Symbol: r.order.Symbol, Status: OrderCancelled, At: time.Now(),
		})
	}
}

func (p *PaperBroker) removeLocked(orderID string, emit bool) {
	for i, r := range p.resting {
		if r.id != orderID {
			continue
		}
		p.resting = append(p.resting[:i], p.resting[i+1:]...)
		if emit {
			p.emitLocked(OrderEvent{
				OrderID: r.id, Symbol: r.order.Symbol, Status: OrderCancelled, At: time.Now(),
			})
		}
		return
	}
}

func (p *PaperBroker) emitLocked(ev OrderEvent) {
	select {
	case p.events <- ev:
	default:
		log.Warn().Str("order_id", ev.OrderID).Msg("Paper broker event buffer full, dropping event")
	}
}

// marketableAt decides whether an order fills at the given last price, and
// at what price.
func marketableAt(o Order, last float64) (float64, bool) {
	switch o.Type {
	case OrderMarket:
		return last, true
	case OrderLimit:
		if o.Side == SideBuy && o.LimitPrice >= last {
			return o.LimitPrice, true
		}
		if o.Side == SideSell && o.LimitPrice <= last {
			return o.LimitPrice, true
		}
	case OrderStop:
		if o.Side == SideSell && last <= o.StopPrice {
			return o.StopPrice, true
		}
		if o.Side == SideBuy && last >= o.StopPrice {
			return o.StopPrice, true
		}
	}
	return 0, false
}
