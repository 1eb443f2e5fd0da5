// store.go — the credit ledger store.
//
// All shared state lives here; request handlers are stateless. The two
// primitives that matter are EnsureLedger (race-safe insert-if-absent, shared
// by the lazy-create path and the identity-provider webhook) and
// DecrementCredit (compare-and-decrement — the sole serialization point for
// concurrent consume requests).
package entitlements

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Payment status values for the payments table.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Ledger is one user's daily credit record.
type Ledger struct {
	UserID           uuid.UUID
	CreditsRemaining int
	LastResetDate    string // UTC calendar date, "2006-01-02"
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Payment is one Stripe Checkout attempt.
type Payment struct {
	SessionID   string
	UserID      uuid.UUID
	Status      string
	AmountCents int
	CreatedAt   time.Time
}

// Store is the persistence contract for the entitlement handlers.
// In production this is PostgresStore; tests use an in-memory implementation.
type Store interface {
	// EnsureLedger returns the user's ledger, creating it with the full
	// allotment if absent and resetting it if last_reset_date != today.
	// Race-safe: concurrent first-time calls converge on a single row.
	EnsureLedger(ctx context.Context, userID uuid.UUID, today string, allotment int) (*Ledger, error)

	// DecrementCredit spends one credit only if the stored balance still
	// equals expected. Returns ErrConflict when another request got there
	// first; the caller re-reads and retries.
	DecrementCredit(ctx context.Context, userID uuid.UUID, expected int) (*Ledger, error)

	// IsPremium reports whether the user holds a premium grant.
	// A missing user_subscriptions row means not premium.
	IsPremium(ctx context.Context, userID uuid.UUID) (bool, error)

	// GrantPremium upserts the premium flag. premium_purchased_at is written
	// only on the false -> true flip; repeated grants never move it.
	GrantPremium(ctx context.Context, userID uuid.UUID) error

	// CreatePayment records a pending checkout. Duplicate session IDs are a
	// no-op.
	CreatePayment(ctx context.Context, p *Payment) error

	// CompletePayment marks a session completed, inserting the row if the
	// pending record was never written. Idempotent.
	CompletePayment(ctx context.Context, sessionID string, userID uuid.UUID) error

	// PaymentBySession returns the payment for a session ID, or
	// ErrPaymentNotFound.
	PaymentBySession(ctx context.Context, sessionID string) (*Payment, error)
}

// storeTimeout bounds every database round-trip so no operation can hang a
// request handler.
const storeTimeout = 5 * time.Second

// PostgresStore implements Store against Postgres via database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureLedger(ctx context.Context, userID uuid.UUID, today string, allotment int) (*Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	// Seed if absent. Under a concurrent first-time race exactly one insert
	// wins; the loser falls through to the read below.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credits (user_id, credits_remaining, last_reset_date)
		VALUES ($1, $2, $3::date)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, allotment, today)
	if err != nil {
		return nil, storeErr("seed ledger", err)
	}

	// Day rollover: refill once per calendar day. Racing callers both run
	// this; the second sees last_reset_date already = today and no-ops.
	_, err = s.db.ExecContext(ctx, `
		UPDATE credits
		SET credits_remaining = $2, last_reset_date = $3::date, updated_at = now()
		WHERE user_id = $1 AND last_reset_date <> $3::date
	`, userID, allotment, today)
	if err != nil {
		return nil, storeErr("reset ledger", err)
	}

	return s.getLedger(ctx, userID)
}

func (s *PostgresStore) DecrementCredit(ctx context.Context, userID uuid.UUID, expected int) (*Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var led Ledger
	led.UserID = userID
	var resetDate time.Time
	err := s.db.QueryRowContext(ctx, `
		UPDATE credits
		SET credits_remaining = credits_remaining - 1, updated_at = now()
		WHERE user_id = $1 AND credits_remaining = $2 AND credits_remaining > 0
		RETURNING credits_remaining, last_reset_date, created_at, updated_at
	`, userID, expected).Scan(&led.CreditsRemaining, &resetDate, &led.CreatedAt, &led.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Balance moved under us (or was already zero) — caller re-reads.
		return nil, ErrConflict
	}
	if err != nil {
		return nil, storeErr("decrement credit", err)
	}
	led.LastResetDate = resetDate.UTC().Format("2006-01-02")
	return &led, nil
}

func (s *PostgresStore) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var isPremium bool
	err := s.db.QueryRowContext(ctx,
		`SELECT is_premium FROM user_subscriptions WHERE user_id = $1`,
		userID).Scan(&isPremium)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("read premium", err)
	}
	return isPremium, nil
}

func (s *PostgresStore) GrantPremium(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	// COALESCE keeps the original purchase timestamp across repeated grants.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_subscriptions (user_id, is_premium, premium_purchased_at)
		VALUES ($1, true, now())
		ON CONFLICT (user_id) DO UPDATE
		SET is_premium = true,
		    premium_purchased_at = COALESCE(user_subscriptions.premium_purchased_at, now()),
		    updated_at = now()
	`, userID)
	if err != nil {
		return storeErr("grant premium", err)
	}
	return nil
}

func (s *PostgresStore) CreatePayment(ctx context.Context, p *Payment) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (stripe_session_id, user_id, status, amount_cents)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stripe_session_id) DO NOTHING
	`, p.SessionID, p.UserID, p.Status, p.AmountCents)
	if err != nil {
		return storeErr("create payment", err)
	}
	return nil
}

func (s *PostgresStore) CompletePayment(ctx context.Context, sessionID string, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	// Upsert so a verified session is recorded even if the pending row was
	// lost. The WHERE guard makes repeated completion a no-op.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (stripe_session_id, user_id, status)
		VALUES ($1, $2, 'completed')
		ON CONFLICT (stripe_session_id) DO UPDATE
		SET status = 'completed', updated_at = now()
		WHERE payments.status <> 'completed'
	`, sessionID, userID)
	if err != nil {
		return storeErr("complete payment", err)
	}
	return nil
}

func (s *PostgresStore) PaymentBySession(ctx context.Context, sessionID string) (*Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var p Payment
	err := s.db.QueryRowContext(ctx, `
		SELECT stripe_session_id, user_id, status, amount_cents, created_at
		FROM payments WHERE stripe_session_id = $1
	`, sessionID).Scan(&p.SessionID, &p.UserID, &p.Status, &p.AmountCents, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, storeErr("read payment", err)
	}
	return &p, nil
}

// getLedger reads a user's ledger row. Callers hold the timeout context.
func (s *PostgresStore) getLedger(ctx context.Context, userID uuid.UUID) (*Ledger, error) {
	var led Ledger
	led.UserID = userID
	var resetDate time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT credits_remaining, last_reset_date, created_at, updated_at
		FROM credits WHERE user_id = $1
	`, userID).Scan(&led.CreditsRemaining, &resetDate, &led.CreatedAt, &led.UpdatedAt)
	if err != nil {
		return nil, storeErr("read ledger", err)
	}
	led.LastResetDate = resetDate.UTC().Format("2006-01-02")
	return &led, nil
}

// storeErr wraps a database failure so handlers can map it to a 503 while
// logs keep the cause.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
