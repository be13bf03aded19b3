package live

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/intradayrun/internal/market"
	"github.com/sawpanic/intradayrun/internal/metrics"
	"github.com/sawpanic/intradayrun/internal/strategy"
)

// Config contains the control-loop settings.
type Config struct {
	Symbols           []string      `yaml:"symbols"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	StaleEntryAfter   time.Duration `yaml:"stale_entry_after"`
	FineBarInterval   time.Duration `yaml:"fine_bar_interval"`
	CoarseBarInterval time.Duration `yaml:"coarse_bar_interval"`
	FineLookback      int           `yaml:"fine_lookback"`
	CoarseLookback    int           `yaml:"coarse_lookback"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BreakerFailures   uint32        `yaml:"breaker_failures"`
}

// DefaultConfig returns the production loop settings: 10-second fine bars,
// 1-minute coarse bars, stale entries cancelled after five minutes.
func DefaultConfig() Config {
	return Config{
		PollInterval:      15 * time.Second,
		StaleEntryAfter:   5 * time.Minute,
		FineBarInterval:   10 * time.Second,
		CoarseBarInterval: time.Minute,
		FineLookback:      360,
		CoarseLookback:    390,
		RequestsPerSecond: 5,
		BreakerFailures:   5,
	}
}

// Validate returns a list of problems, empty when the config is usable.
func (c Config) Validate() []string {
	var problems []string
	if len(c.Symbols) == 0 {
		problems = append(problems, "symbols must not be empty")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "poll_interval must be positive")
	}
	if c.StaleEntryAfter <= 0 {
		problems = append(problems, "stale_entry_after must be positive")
	}
	if c.FineLookback < 2 || c.CoarseLookback < 2 {
		problems = append(problems, "bar lookbacks must be at least 2")
	}
	if c.RequestsPerSecond <= 0 {
		problems = append(problems, "requests_per_second must be positive")
	}
	return problems
}

// Trader is the live control loop: one goroutine polling symbols round-robin,
// consuming broker events, and driving the per-symbol lifecycles.
type Trader struct {
	config    Config
	evaluator *strategy.Evaluator
	data      MarketData
	exec      OrderExecutor
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	metrics   *metrics.Registry
	states    map[string]*Lifecycle
	now       func() time.Time
}

// NewTrader wires the control loop. metrics may be nil.
func NewTrader(cfg Config, evaluator *strategy.Evaluator, data MarketData, exec OrderExecutor, m *metrics.Registry) (*Trader, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid live config: %v", problems)
	}
	if m == nil {
		m = metrics.NewRegistry()
	}

	settings := gobreaker.Settings{Name: "broker"}
	failures := cfg.BreakerFailures
	settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= failures
	}

	states := make(map[string]*Lifecycle, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		states[s] = NewLifecycle(s)
	}

	return &Trader{
		config:    cfg,
		evaluator: evaluator,
		data:      data,
		exec:      exec,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker:   gobreaker.NewCircuitBreaker(settings),
		metrics:   m,
		states:    states,
		now:       time.Now,
	}, nil
}

// Run drives the loop until the context is cancelled. Cancellation stops
// polling without touching resting orders.
func (t *Trader) Run(ctx context.Context) error {
	log.Info().Strs("symbols", t.config.Symbols).
		Dur("poll_interval", t.config.PollInterval).
		Str("variant", string(t.evaluator.Config().Variant)).
		Msg("Live trading loop starting")

	ticker := time.NewTicker(t.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Live trading loop stopping, resting orders left in place")
			return ctx.Err()
		case ev := <-t.exec.Events():
			t.handleEvent(ctx, ev)
		case <-ticker.C:
			t.pollAll(ctx)
		}
	}
}

// pollAll runs one round-robin pass over all symbols. A failed symbol is
// logged and skipped, the cycle continues.
func (t *Trader) pollAll(ctx context.Context) {
	for _, symbol := range t.config.Symbols {
		t.drainEvents(ctx)
		if err := t.limiter.Wait(ctx); err != nil {
			return
		}
		if err := t.pollSymbol(ctx, symbol); err != nil {
			t.metrics.PollErrors.WithLabelValues(symbol).Inc()
			log.Warn().Err(err).Str("symbol", symbol).Msg("Symbol poll failed")
		}
	}
	t.metrics.PollCycles.Inc()
	t.updatePositionGauge()
}

func (t *Trader) drainEvents(ctx context.Context) {
	for {
		select {
		case ev := <-t.exec.Events():
			t.handleEvent(ctx, ev)
		default:
			return
		}
	}
}

func (t *Trader) updatePositionGauge() {
	open := 0
	for _, lc := range t.states {
		switch lc.State() {
		case StateUnprotected, StateProtected, StateExiting:
			open++
		}
	}
	t.metrics.OpenPositions.Set(float64(open))
}

// pollSymbol advances one symbol's lifecycle by one step.
func (t *Trader) pollSymbol(ctx context.Context, symbol string) error {
	lc := t.states[symbol]
	now := t.now()
	snap := lc.Snapshot()

	switch snap.State {
	case StatePendingEntry:
		return t.managePendingEntry(ctx, lc, now)
	case StateUnprotected, StateProtected:
		return t.manageOpenPosition(ctx, lc, now)
	case StateIdle:
		return t.maybeEnter(ctx, lc, now)
	default:
		// EXITING: waiting on the close fill event.
		return nil
	}
}

func (t *Trader) managePendingEntry(ctx context.Context, lc *Lifecycle, now time.Time) error {
	snap := lc.Snapshot()
	clock := t.evaluator.Clock()

	if clock.IsEndOfDay(now) {
		if err := t.cancelOrder(ctx, snap.EntryOrderID); err != nil {
			return err
		}
		t.metrics.EntriesCancelled.WithLabelValues(snap.Symbol).Inc()
		log.Info().Str("symbol", snap.Symbol).Msg("End of day, cancelled pending entry")
		return lc.EntryCancelled()
	}

	orderID, stale := lc.EntryStale(now, t.config.StaleEntryAfter)
	if !stale {
		return nil
	}
	if err := t.cancelOrder(ctx, orderID); err != nil {
		return err
	}
	t.metrics.EntriesCancelled.WithLabelValues(snap.Symbol).Inc()
	log.Warn().Str("symbol", snap.Symbol).Str("order_id", orderID).
		Dur("age", now.Sub(snap.EntryPlacedAt)).
		Msg("Cancelled stale pending entry")
	return lc.EntryCancelled()
}

func (t *Trader) maybeEnter(ctx context.Context, lc *Lifecycle, now time.Time) error {
	clock := t.evaluator.Clock()
	if !clock.IsTradable(now) {
		return nil
	}
	symbol := lc.Snapshot().Symbol

	coarse, err := t.fetchBars(ctx, symbol, t.config.CoarseBarInterval, t.config.CoarseLookback)
	if err != nil {
		return err
	}
	quote, err := t.fetchQuote(ctx, symbol)
	if err != nil {
		return err
	}
	if quote.Last <= 0 {
		return fmt.Errorf("no last price for %s", symbol)
	}

	window := t.sessionWindow(coarse, now)
	result := t.evaluator.EvaluateEntry(now, window, window, quote.Last)
	if !result.Passed {
		return nil
	}

	plan := t.evaluator.Config().BuildTradePlan(quote.Last, result.Detection)
	if !plan.Valid {
		log.Debug().Str("symbol", symbol).Str("reason", plan.Reason).Msg("Setup confirmed but plan rejected")
		return nil
	}

	premarket := clock.IsPremarket(now)
	orderID, err := t.submitOrder(ctx, Order{
		Symbol:     symbol,
		Side:       SideBuy,
		Type:       OrderLimit,
		Quantity:   plan.Shares,
		LimitPrice: plan.EntryPrice,
		OutsideRTH: premarket,
	})
	if err != nil {
		return err
	}

	t.metrics.EntriesSubmitted.WithLabelValues(symbol).Inc()
	log.Info().Str("symbol", symbol).Str("order_id", orderID).
		Int("shares", plan.Shares).
		Float64("entry", plan.EntryPrice).
		Float64("stop", plan.StopLoss).
		Float64("target", plan.ProfitTarget).
		Bool("premarket", premarket).
		Msg("Entry order submitted")
	return lc.EntryPlaced(orderID, plan, now, premarket)
}

func (t *Trader) manageOpenPosition(ctx context.Context, lc *Lifecycle, now time.Time) error {
	snap := lc.Snapshot()
	clock := t.evaluator.Clock()

	if clock.IsEndOfDay(now) {
		return t.closeForDay(ctx, lc, now)
	}

	// Pre-market fills have no resting protection; watch the bid and close
	// manually when a protective level trips.
	if snap.State == StateUnprotected && clock.IsPremarket(now) {
		return t.monitorPremarket(ctx, lc, now)
	}

	// Unprotected in regular hours: a pre-market fill carried over the open,
	// or a bracket submission that failed at fill time. Protect it now.
	if snap.State == StateUnprotected && clock.IsRegularHours(now) {
		return t.placeBrackets(ctx, lc)
	}

	if snap.State == StateProtected {
		return t.checkDynamicExit(ctx, lc, now)
	}
	return nil
}

// monitorPremarket emulates protective orders before the open: a limit sell
// at the bid when it crosses the stop or target.
func (t *Trader) monitorPremarket(ctx context.Context, lc *Lifecycle, now time.Time) error {
	snap := lc.Snapshot()

	quote, err := t.fetchQuote(ctx, snap.Symbol)
	if err != nil {
		return err
	}
	if quote.Bid <= 0 {
		return nil
	}

	var reason string
	switch {
	case quote.Bid <= snap.Position.StopLoss:
		reason = strategy.ExitStopLoss.String()
	case quote.Bid >= snap.Position.ProfitTarget:
		reason = strategy.ExitProfitTarget.String()
	default:
		return nil
	}

	orderID, err := t.submitOrder(ctx, Order{
		Symbol:     snap.Symbol,
		Side:       SideSell,
		Type:       OrderLimit,
		Quantity:   snap.Position.Shares,
		LimitPrice: quote.Bid,
		OutsideRTH: true,
	})
	if err != nil {
		return err
	}

	t.metrics.ExitsSubmitted.WithLabelValues(snap.Symbol, reason).Inc()
	log.Info().Str("symbol", snap.Symbol).Str("order_id", orderID).
		Str("reason", reason).Float64("bid", quote.Bid).
		Msg("Pre-market protective exit submitted")
	return lc.ExitSubmitted()
}

// placeBrackets submits the stop and target as an OCA pair.
func (t *Trader) placeBrackets(ctx context.Context, lc *Lifecycle) error {
	snap := lc.Snapshot()
	ocaGroup := NewOCAGroup(snap.Symbol)

	targetID, err := t.submitOrder(ctx, Order{
		Symbol:     snap.Symbol,
		Side:       SideSell,
		Type:       OrderLimit,
		Quantity:   snap.Position.Shares,
		LimitPrice: snap.Position.ProfitTarget,
		OCAGroup:   ocaGroup,
	})
	if err != nil {
		return err
	}
	stopID, err := t.submitOrder(ctx, Order{
		Symbol:    snap.Symbol,
		Side:      SideSell,
		Type:      OrderStop,
		Quantity:  snap.Position.Shares,
		StopPrice: snap.Position.StopLoss,
		OCAGroup:  ocaGroup,
	})
	if err != nil {
		return err
	}

	log.Info().Str("symbol", snap.Symbol).Str("oca_group", ocaGroup).
		Str("stop_order", stopID).Str("target_order", targetID).
		Msg("Protective brackets placed")
	return lc.BracketsPlaced(ocaGroup, stopID, targetID)
}

// checkDynamicExit applies the variant's momentum-loss rule while brackets
// are active. On trigger the brackets are cancelled and the position closed
// at market.
func (t *Trader) checkDynamicExit(ctx context.Context, lc *Lifecycle, now time.Time) error {
	snap := lc.Snapshot()

	fine, err := t.fetchBars(ctx, snap.Symbol, t.config.FineBarInterval, t.config.FineLookback)
	if err != nil {
		return err
	}
	sinceEntry := fine.Since(snap.Position.EntryTime)
	triggered, msg := t.evaluator.CheckDynamicExit(sinceEntry)
	if !triggered {
		return nil
	}

	for _, orderID := range []string{snap.StopOrderID, snap.TargetOrderID} {
		if err := t.cancelOrder(ctx, orderID); err != nil {
			return err
		}
	}
	orderID, err := t.submitOrder(ctx, Order{
		Symbol:   snap.Symbol,
		Side:     SideSell,
		Type:     OrderMarket,
		Quantity: snap.Position.Shares,
	})
	if err != nil {
		return err
	}

	t.metrics.ExitsSubmitted.WithLabelValues(snap.Symbol, strategy.ExitDynamic.String()).Inc()
	log.Info().Str("symbol", snap.Symbol).Str("order_id", orderID).
		Str("signal", msg).Msg("Dynamic exit submitted")
	return lc.ExitSubmitted()
}

// closeForDay flattens an open position at the end-of-day cutoff: market
// order in regular hours, limit at the bid before the open.
func (t *Trader) closeForDay(ctx context.Context, lc *Lifecycle, now time.Time) error {
	snap := lc.Snapshot()

	if snap.State == StateProtected {
		for _, orderID := range []string{snap.StopOrderID, snap.TargetOrderID} {
			if err := t.cancelOrder(ctx, orderID); err != nil {
				return err
			}
		}
	}

	order := Order{
		Symbol:   snap.Symbol,
		Side:     SideSell,
		Type:     OrderMarket,
		Quantity: snap.Position.Shares,
	}
	if t.evaluator.Clock().IsPremarket(now) {
		quote, err := t.fetchQuote(ctx, snap.Symbol)
		if err != nil {
			return err
		}
		order.Type = OrderLimit
		order.LimitPrice = quote.Bid
		order.OutsideRTH = true
	}

	orderID, err := t.submitOrder(ctx, order)
	if err != nil {
		return err
	}

	t.metrics.ExitsSubmitted.WithLabelValues(snap.Symbol, strategy.ExitEndOfDay.String()).Inc()
	log.Info().Str("symbol", snap.Symbol).Str("order_id", orderID).
		Msg("End of day, closing position")
	return lc.ExitSubmitted()
}

// handleEvent routes a broker event to the owning lifecycle.
func (t *Trader) handleEvent(ctx context.Context, ev OrderEvent) {
	lc, ok := t.states[ev.Symbol]
	if !ok || !lc.OwnsOrder(ev.OrderID) {
		// Exit orders are not tracked by ID; a fill on an unknown order
		// for a position in flight closes it.
		if ok {
			state := lc.State()
			if ev.Status == OrderFilled && (state == StateExiting || state == StateProtected) {
				if err := lc.Closed(); err == nil {
					log.Info().Str("symbol", ev.Symbol).Str("order_id", ev.OrderID).
						Float64("price", ev.FillPrice).Msg("Position closed")
					return
				}
			}
		}
		log.Debug().Str("symbol", ev.Symbol).Str("order_id", ev.OrderID).
			Str("status", string(ev.Status)).Msg("Ignoring event for unknown order")
		return
	}

	snap := lc.Snapshot()
	switch {
	case ev.OrderID == snap.EntryOrderID && ev.Status == OrderFilled:
		if err := lc.EntryFilled(ev.FillPrice, ev.FilledQty, ev.At); err != nil {
			log.Error().Err(err).Str("symbol", ev.Symbol).Msg("Entry fill in unexpected state")
			return
		}
		t.metrics.EntriesFilled.WithLabelValues(ev.Symbol).Inc()
		log.Info().Str("symbol", ev.Symbol).Float64("price", ev.FillPrice).
			Int("shares", ev.FilledQty).Msg("Entry filled")

		// Regular-hours fills get their brackets right away; a filled
		// position must never sit unprotected until the next poll.
		// Pre-market fills stay under manual bid monitoring instead.
		if t.evaluator.Clock().IsRegularHours(t.now()) {
			if err := t.placeBrackets(ctx, lc); err != nil {
				// Still unprotected, the next poll retries.
				log.Error().Err(err).Str("symbol", ev.Symbol).
					Msg("Failed to place brackets after entry fill")
			}
		}

	case ev.OrderID == snap.EntryOrderID && (ev.Status == OrderCancelled || ev.Status == OrderRejected):
		if err := lc.EntryCancelled(); err != nil {
			log.Error().Err(err).Str("symbol", ev.Symbol).Msg("Entry cancel in unexpected state")
			return
		}
		t.metrics.EntriesCancelled.WithLabelValues(ev.Symbol).Inc()
		log.Info().Str("symbol", ev.Symbol).Str("status", string(ev.Status)).Msg("Entry order closed without fill")

	case (ev.OrderID == snap.StopOrderID || ev.OrderID == snap.TargetOrderID) && ev.Status == OrderFilled:
		if err := lc.Closed(); err != nil {
			log.Error().Err(err).Str("symbol", ev.Symbol).Msg("Bracket fill in unexpected state")
			return
		}
		reason := strategy.ExitStopLoss
		if ev.OrderID == snap.TargetOrderID {
			reason = strategy.ExitProfitTarget
		}
		log.Info().Str("symbol", ev.Symbol).Str("reason", reason.String()).
			Float64("price", ev.FillPrice).Msg("Bracket order filled, position closed")
	}
}

// sessionWindow mirrors the backtest's session filtering: trailing window in
// pre-market, session-anchored bars after the open.
func (t *Trader) sessionWindow(coarse market.Series, now time.Time) market.Series {
	clock := t.evaluator.Clock()
	upTo := coarse
	for len(upTo) > 0 && upTo[len(upTo)-1].Timestamp.After(now) {
		upTo = upTo[:len(upTo)-1]
	}
	if clock.IsPremarket(now) {
		return upTo.Tail(t.config.CoarseLookback)
	}
	return upTo.Since(clock.OpenTime(now))
}

func (t *Trader) fetchBars(ctx context.Context, symbol string, interval time.Duration, lookback int) (market.Series, error) {
	res, err := t.breaker.Execute(func() (interface{}, error) {
		return t.data.Bars(ctx, symbol, interval, lookback)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s: %w", symbol, err)
	}
	return res.(market.Series), nil
}

func (t *Trader) fetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	res, err := t.breaker.Execute(func() (interface{}, error) {
		return t.data.Quote(ctx, symbol)
	})
	if err != nil {
		return market.Quote{}, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}
	return res.(market.Quote), nil
}

func (t *Trader) submitOrder(ctx context.Context, order Order) (string, error) {
	res, err := t.breaker.Execute(func() (interface{}, error) {
		return t.exec.Submit(ctx, order)
	})
	if err != nil {
		return "", fmt.Errorf("submit order %s: %w", order.Symbol, err)
	}
	return res.(string), nil
}

func (t *Trader) cancelOrder(ctx context.Context, orderID string) error {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		return nil, t.exec.Cancel(ctx, orderID)
	})
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}
