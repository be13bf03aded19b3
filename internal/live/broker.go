// Package live runs the strategy against a broker: order lifecycle state
// machines per symbol and a polling control loop around broker collaborators.
package live

import (
	"context"
	"time"

	"github.com/sawpanic/intradayrun/internal/market"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType mirrors the broker's order types.
type OrderType string

const (
	OrderLimit  OrderType = "LMT"
	OrderStop   OrderType = "STP"
	OrderMarket OrderType = "MKT"
)

// Order is an order submission request. OCAGroup links protective orders so
// the broker cancels the sibling when one fills.
type Order struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Type       OrderType `json:"type"`
	Quantity   int       `json:"quantity"`
	LimitPrice float64   `json:"limit_price,omitempty"`
	StopPrice  float64   `json:"stop_price,omitempty"`
	OCAGroup   string    `json:"oca_group,omitempty"`
	OutsideRTH bool      `json:"outside_rth,omitempty"`
}

// OrderStatus is a terminal order state reported by the broker.
type OrderStatus string

const (
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
)

// OrderEvent is a broker notification about an order. Events are consumed
// only by the control loop goroutine.
type OrderEvent struct {
	OrderID   string      `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Status    OrderStatus `json:"status"`
	FilledQty int         `json:"filled_qty"`
	FillPrice float64     `json:"fill_price"`
	At        time.Time   `json:"at"`
}

// MarketData provides bars and quotes from the broker feed.
type MarketData interface {
	Bars(ctx context.Context, symbol string, interval time.Duration, lookback int) (market.Series, error)
	Quote(ctx context.Context, symbol string) (market.Quote, error)
}

// OrderExecutor submits and cancels orders. Submit returns the broker's
// order ID; fills and cancellations arrive later on Events.
type OrderExecutor interface {
	Submit(ctx context.Context, order Order) (string, error)
	Cancel(ctx context.Context, orderID string) error
	Events() <-chan OrderEvent
}
