// fakes_test.go — in-memory Store and PaymentBridge for handler tests.
// The fakes mirror the SQL semantics: conditional insert, compare-and-
// decrement, idempotent grants and completions.
package entitlements

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu        sync.Mutex
	ledgers   map[uuid.UUID]*Ledger
	premium   map[uuid.UUID]bool
	purchased map[uuid.UUID]time.Time
	payments  map[string]*Payment
	err       error // when set, every call fails with it
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ledgers:   make(map[uuid.UUID]*Ledger),
		premium:   make(map[uuid.UUID]bool),
		purchased: make(map[uuid.UUID]time.Time),
		payments:  make(map[string]*Payment),
	}
}

// setLedger seeds a ledger row directly, bypassing EnsureLedger.
func (f *fakeStore) setLedger(userID uuid.UUID, credits int, resetDate string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledgers[userID] = &Ledger{UserID: userID, CreditsRemaining: credits, LastResetDate: resetDate}
}

func (f *fakeStore) credits(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if led, ok := f.ledgers[userID]; ok {
		return led.CreditsRemaining
	}
	return -1
}

func (f *fakeStore) EnsureLedger(_ context.Context, userID uuid.UUID, today string, allotment int) (*Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	led, ok := f.ledgers[userID]
	if !ok {
		led = &Ledger{UserID: userID, CreditsRemaining: allotment, LastResetDate: today}
		f.ledgers[userID] = led
	} else if led.LastResetDate != today {
		led.CreditsRemaining = allotment
		led.LastResetDate = today
	}
	cp := *led
	return &cp, nil
}

func (f *fakeStore) DecrementCredit(_ context.Context, userID uuid.UUID, expected int) (*Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	led, ok := f.ledgers[userID]
	if !ok || led.CreditsRemaining != expected || led.CreditsRemaining <= 0 {
		return nil, ErrConflict
	}
	led.CreditsRemaining--
	cp := *led
	return &cp, nil
}

func (f *fakeStore) IsPremium(_ context.Context, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.premium[userID], nil
}

func (f *fakeStore) GrantPremium(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.premium[userID] = true
	if _, ok := f.purchased[userID]; !ok {
		f.purchased[userID] = time.Now()
	}
	return nil
}

func (f *fakeStore) CreatePayment(_ context.Context, p *Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.payments[p.SessionID]; ok {
		return nil
	}
	cp := *p
	f.payments[p.SessionID] = &cp
	return nil
}

func (f *fakeStore) CompletePayment(_ context.Context, sessionID string, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p, ok := f.payments[sessionID]
	if !ok {
		p = &Payment{SessionID: sessionID, UserID: userID}
		f.payments[sessionID] = p
	}
	if p.Status != PaymentCompleted {
		p.Status = PaymentCompleted
	}
	return nil
}

func (f *fakeStore) PaymentBySession(_ context.Context, sessionID string) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.payments[sessionID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

type fakeBridge struct {
	mu          sync.Mutex
	sessions    map[string]*PaymentSession
	createErr   error
	retrieveErr error
	n           int
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{sessions: make(map[string]*PaymentSession)}
}

// addSession registers a session as the processor would report it.
func (b *fakeBridge) addSession(sess PaymentSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sess.ID] = &sess
}

func (b *fakeBridge) markPaid(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[sessionID]; ok {
		s.Paid = true
	}
}

func (b *fakeBridge) CreateCheckout(_ context.Context, userID uuid.UUID) (*CheckoutSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.n++
	id := fmt.Sprintf("cs_test_%03d", b.n)
	b.sessions[id] = &PaymentSession{ID: id, Paid: false, UserID: userID}
	return &CheckoutSession{ID: id, URL: "https://checkout.stripe.test/pay/" + id}, nil
}

func (b *fakeBridge) RetrieveSession(_ context.Context, sessionID string) (*PaymentSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.retrieveErr != nil {
		return nil, b.retrieveErr
	}
	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}
