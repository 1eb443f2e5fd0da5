package creditgate

import (
	"context"
	"errors"
	"sync"
)

// State is a gate position in the playback decision flow.
type State string

const (
	// StateIdle is the resting state; no play request in flight.
	StateIdle State = "idle"
	// StateCheckingBalance means a balance check is in progress.
	StateCheckingBalance State = "checking_balance"
	// StateAwaitingChoice means the user must pick: spend a credit or upgrade.
	StateAwaitingChoice State = "awaiting_choice"
	// StateConsuming means a credit consumption is in progress.
	StateConsuming State = "consuming"
	// StateProceeding means playback is allowed to start.
	StateProceeding State = "proceeding"
	// StateBlocked means credits are exhausted; only the upgrade path remains.
	StateBlocked State = "blocked"
)

// ErrInvalidTransition is returned when a gate method is called from a state
// it does not apply to.
var ErrInvalidTransition = errors.New("creditgate: invalid state transition")

// EntitlementsAPI is the slice of the server API the gate needs.
type EntitlementsAPI interface {
	CheckBalance(ctx context.Context) (*Balance, error)
	ConsumeCredit(ctx context.Context) (*ConsumeResult, error)
}

// Gate is the per-user playback gate. It is safe for concurrent use, though a
// player typically drives it from a single goroutine.
//
// Flow: RequestPlay moves Idle through CheckingBalance into Proceeding
// (premium users), AwaitingChoice (credits remain) or Blocked (exhausted).
// From AwaitingChoice, UseCredit attempts the spend; success proceeds, a
// denial leaves the gate in Blocked. Cancel returns to Idle from anywhere.
type Gate struct {
	api EntitlementsAPI

	mu      sync.Mutex
	state   State
	balance *Balance
	denial  string
}

// NewGate creates a Gate in the idle state.
func NewGate(api EntitlementsAPI) *Gate {
	return &Gate{api: api, state: StateIdle}
}

// State reports the current gate position.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Balance returns the last balance fetched by RequestPlay, or nil.
func (g *Gate) Balance() *Balance {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance
}

// Denial returns the server's denial message from the last failed
// consumption, or "" if the last attempt succeeded.
func (g *Gate) Denial() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.denial
}

// RequestPlay starts the decision flow for a play request. It is only valid
// from Idle. On an API failure the gate returns to Idle so the user can
// retry.
func (g *Gate) RequestPlay(ctx context.Context) (State, error) {
	g.mu.Lock()
	if g.state != StateIdle {
		s := g.state
		g.mu.Unlock()
		return s, ErrInvalidTransition
	}
	g.state = StateCheckingBalance
	g.denial = ""
	g.mu.Unlock()

	bal, err := g.api.CheckBalance(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateCheckingBalance {
		// Cancelled while the check was in flight.
		return g.state, nil
	}
	if err != nil {
		g.state = StateIdle
		return g.state, err
	}

	g.balance = bal
	switch {
	case bal.IsPremium:
		g.state = StateProceeding
	case bal.CanWatch:
		g.state = StateAwaitingChoice
	default:
		g.state = StateBlocked
	}
	return g.state, nil
}

// UseCredit spends a credit from AwaitingChoice. On success the gate moves to
// Proceeding. A server denial (credits raced to zero) moves it to Blocked; a
// transport failure returns it to AwaitingChoice so the user can retry.
func (g *Gate) UseCredit(ctx context.Context) (State, error) {
	g.mu.Lock()
	if g.state != StateAwaitingChoice {
		s := g.state
		g.mu.Unlock()
		return s, ErrInvalidTransition
	}
	g.state = StateConsuming
	g.mu.Unlock()

	res, err := g.api.ConsumeCredit(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateConsuming {
		return g.state, nil
	}
	if err != nil {
		g.state = StateAwaitingChoice
		return g.state, err
	}

	if g.balance != nil {
		g.balance.IsPremium = res.IsPremium
		g.balance.Credits = res.CreditsRemaining
	}
	if res.Success {
		g.denial = ""
		g.state = StateProceeding
	} else {
		g.denial = res.Error
		g.state = StateBlocked
	}
	return g.state, nil
}

// Cancel abandons the current flow and returns the gate to Idle. In-flight
// RequestPlay or UseCredit calls observe the cancellation and leave the state
// untouched when they complete.
func (g *Gate) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateIdle
	g.denial = ""
}
