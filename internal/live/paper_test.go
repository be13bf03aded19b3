package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/intradayrun/internal/market"
)

func paperBars(t *testing.T, closes ...float64) market.Series {
	t.Helper()
	bars := make(market.Series, len(closes))
	ts := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	for i, c := range closes {
		b, err := market.NewBar(ts.Add(time.Duration(i)*time.Minute), c, c+0.05, c-0.05, c, 1000)
		require.NoError(t, err)
		bars[i] = b
	}
	return bars
}

func TestPaperBrokerBarsAndQuote(t *testing.T) {
	p := NewPaperBroker()
	p.Load("ABCD", paperBars(t, 10.0, 10.1, 10.2), paperBars(t, 10.2))

	ctx := context.Background()

	fine, err := p.Bars(ctx, "ABCD", 10*time.Second, 2)
	require.NoError(t, err)
	assert.Len(t, fine, 2)

	coarse, err := p.Bars(ctx, "ABCD", time.Minute, 10)
	require.NoError(t, err)
	assert.Len(t, coarse, 1)

	quote, err := p.Quote(ctx, "ABCD")
	require.NoError(t, err)
	assert.InDelta(t, 10.2, quote.Last, 1e-9)
	assert.Less(t, quote.Bid, quote.Ask)

	_, err = p.Bars(ctx, "WXYZ", time.Minute, 10)
	assert.Error(t, err)
}

func TestPaperBrokerFillsMarketableOrders(t *testing.T) {
	p := NewPaperBroker()
	p.Load("ABCD", paperBars(t, 10.0), nil)
	ctx := context.Background()

	// Limit buy above the last price crosses and fills at the limit.
	id, err := p.Submit(ctx, Order{Symbol: "ABCD", Side: SideBuy, Type: OrderLimit, Quantity: 9, LimitPrice: 10.27})
	require.NoError(t, err)

	ev := <-p.Events()
	assert.Equal(t, id, ev.OrderID)
	assert.Equal(t, OrderFilled, ev.Status)
	assert.Equal(t, 9, ev.FilledQty)
	assert.InDelta(t, 10.27, ev.FillPrice, 1e-9)

	// Market sell fills at the last price.
	_, err = p.Submit(ctx, Order{Symbol: "ABCD", Side: SideSell, Type: OrderMarket, Quantity: 9})
	require.NoError(t, err)
	ev = <-p.Events()
	assert.Equal(t, OrderFilled, ev.Status)
	assert.InDelta(t, 10.0, ev.FillPrice, 1e-9)
}

func TestPaperBrokerRestingOCA(t *testing.T) {
	p := NewPaperBroker()
	fine := paperBars(t, 10.0)
	p.Load("ABCD", fine, nil)
	ctx := context.Background()

	// Sell limit above and stop below the market both rest.
	targetID, err := p.Submit(ctx, Order{Symbol: "ABCD", Side: SideSell, Type: OrderLimit, Quantity: 9, LimitPrice: 12.84, OCAGroup: "OCA_ABCD_1"})
	require.NoError(t, err)
	stopID, err := p.Submit(ctx, Order{Symbol: "ABCD", Side: SideSell, Type: OrderStop, Quantity: 9, StopPrice: 9.60, OCAGroup: "OCA_ABCD_1"})
	require.NoError(t, err)
	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event for resting order: %+v", ev)
	default:
	}

	// Price rallies through the target: target fills, stop cancels.
	p.Load("ABCD", append(fine, paperBars(t, 13.0)...), nil)
	_, err = p.Quote(ctx, "ABCD")
	require.NoError(t, err)

	fill := <-p.Events()
	assert.Equal(t, targetID, fill.OrderID)
	assert.Equal(t, OrderFilled, fill.Status)
	assert.InDelta(t, 12.84, fill.FillPrice, 1e-9)

	cancel := <-p.Events()
	assert.Equal(t, stopID, cancel.OrderID)
	assert.Equal(t, OrderCancelled, cancel.Status)
}

func TestPaperBrokerCancel(t *testing.T) {
	p := NewPaperBroker()
	p.Load("ABCD", paperBars(t, 10.0), nil)
	ctx := context.Background()

	id, err := p.Submit(ctx, Order{Symbol: "ABCD", Side: SideSell, Type: OrderLimit, Quantity: 9, LimitPrice: 12.84})
	require.NoError(t, err)

	require.NoError(t, p.Cancel(ctx, id))
	ev := <-p.Events()
	assert.Equal(t, id, ev.OrderID)
	assert.Equal(t, OrderCancelled, ev.Status)

	// Cancelling again is a no-op.
	require.NoError(t, p.Cancel(ctx, id))
	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event after double cancel: %+v", ev)
	default:
	}
}
