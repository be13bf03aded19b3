package live

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/intradayrun/internal/strategy"
)

// State is a position in the order lifecycle. Transitions are explicit
// methods on Lifecycle; anything else is rejected.
type State int

const (
	StateIdle State = iota
	StatePendingEntry
	StateUnprotected
	StateProtected
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePendingEntry:
		return "PENDING_ENTRY"
	case StateUnprotected:
		return "IN_POSITION_UNPROTECTED"
	case StateProtected:
		return "IN_POSITION_PROTECTED"
	case StateExiting:
		return "EXITING"
	default:
		return "UNKNOWN"
	}
}

// NewOCAGroup returns a fresh one-cancels-all group tag for a symbol's
// protective orders.
func NewOCAGroup(symbol string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("OCA_%s_%s", symbol, id)
}

// Snapshot is a consistent copy of a lifecycle's fields for decision making
// outside the lock.
type Snapshot struct {
	Symbol         string
	State          State
	EntryOrderID   string
	EntryPlacedAt  time.Time
	PremarketEntry bool
	Plan           strategy.TradePlan
	Position       strategy.Position
	OCAGroup       string
	StopOrderID    string
	TargetOrderID  string
}

// Lifecycle tracks one symbol's order state. All mutation goes through
// transition methods under the mutex; invalid transitions return an error
// instead of corrupting state.
type Lifecycle struct {
	mu sync.Mutex

	symbol         string
	state          State
	entryOrderID   string
	entryPlacedAt  time.Time
	premarketEntry bool
	plan           strategy.TradePlan
	position       strategy.Position
	ocaGroup       string
	stopOrderID    string
	targetOrderID  string
}

// NewLifecycle creates an idle lifecycle for a symbol.
func NewLifecycle(symbol string) *Lifecycle {
	return &Lifecycle{symbol: symbol, state: StateIdle}
}

// Snapshot returns a copy of the current fields.
func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Symbol:         l.symbol,
		State:          l.state,
		EntryOrderID:   l.entryOrderID,
		EntryPlacedAt:  l.entryPlacedAt,
		PremarketEntry: l.premarketEntry,
		Plan:           l.plan,
		Position:       l.position,
		OCAGroup:       l.ocaGroup,
		StopOrderID:    l.stopOrderID,
		TargetOrderID:  l.targetOrderID,
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) transitionErr(method string) error {
	return fmt.Errorf("%s: invalid in state %s for %s", method, l.state, l.symbol)
}

// EntryPlaced records a submitted entry order. IDLE -> PENDING_ENTRY.
func (l *Lifecycle) EntryPlaced(orderID string, plan strategy.TradePlan, at time.Time, premarket bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return l.transitionErr("EntryPlaced")
	}
	l.state = StatePendingEntry
	l.entryOrderID = orderID
	l.entryPlacedAt = at
	l.premarketEntry = premarket
	l.plan = plan
	return nil
}

// EntryStale reports whether the pending entry has exceeded maxAge, and the
// order ID to cancel if so.
func (l *Lifecycle) EntryStale(now time.Time, maxAge time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StatePendingEntry {
		return "", false
	}
	if now.Sub(l.entryPlacedAt) <= maxAge {
		return "", false
	}
	return l.entryOrderID, true
}

// EntryCancelled clears a pending entry. PENDING_ENTRY -> IDLE.
func (l *Lifecycle) EntryCancelled() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StatePendingEntry {
		return l.transitionErr("EntryCancelled")
	}
	l.reset()
	return nil
}

// EntryFilled opens the position. PENDING_ENTRY -> IN_POSITION_UNPROTECTED.
func (l *Lifecycle) EntryFilled(price float64, qty int, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StatePendingEntry {
		return l.transitionErr("EntryFilled")
	}
	l.state = StateUnprotected
	l.position = strategy.Position{
		Symbol:       l.symbol,
		EntryTime:    at,
		EntryPrice:   price,
		Shares:       qty,
		StopLoss:     l.plan.StopLoss,
		ProfitTarget: l.plan.ProfitTarget,
	}
	return nil
}

// BracketsPlaced records confirmed protective orders.
// IN_POSITION_UNPROTECTED -> IN_POSITION_PROTECTED.
func (l *Lifecycle) BracketsPlaced(ocaGroup, stopOrderID, targetOrderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateUnprotected {
		return l.transitionErr("BracketsPlaced")
	}
	l.state = StateProtected
	l.ocaGroup = ocaGroup
	l.stopOrderID = stopOrderID
	l.targetOrderID = targetOrderID
	return nil
}

// ExitSubmitted records a manual close order on an open position.
// IN_POSITION_UNPROTECTED or IN_POSITION_PROTECTED -> EXITING.
func (l *Lifecycle) ExitSubmitted() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateUnprotected && l.state != StateProtected {
		return l.transitionErr("ExitSubmitted")
	}
	l.state = StateExiting
	return nil
}

// Closed returns the lifecycle to idle after the position is flat. Valid
// from EXITING (manual close filled) or IN_POSITION_PROTECTED (a bracket
// order filled).
func (l *Lifecycle) Closed() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateExiting && l.state != StateProtected {
		return l.transitionErr("Closed")
	}
	l.reset()
	return nil
}

// OwnsOrder reports whether an order ID belongs to this lifecycle.
func (l *Lifecycle) OwnsOrder(orderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return orderID != "" &&
		(orderID == l.entryOrderID || orderID == l.stopOrderID || orderID == l.targetOrderID)
}

func (l *Lifecycle) reset() {
	l.state = StateIdle
	l.entryOrderID = ""
	l.entryPlacedAt = time.Time{}
	l.premarketEntry = false
	l.plan = strategy.TradePlan{}
	l.position = strategy.Position{}
	l.ocaGroup = ""
	l.stopOrderID = ""
	l.targetOrderID = ""
}
