package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"donation/internal/domain"
	"donation/internal/repository"
)

// sessionSchema creates the checkout session table.
const sessionSchema = `
	CREATE TABLE IF NOT EXISTS checkout_sessions (
		order_id       TEXT PRIMARY KEY,
		customer_id    TEXT NOT NULL,
		amount         NUMERIC(12, 2) NOT NULL,
		donor          JSONB,
		flow           TEXT NOT NULL,
		ticket         TEXT NOT NULL DEFAULT '',
		data_key       TEXT NOT NULL DEFAULT '',
		token_consumed BOOLEAN NOT NULL DEFAULT FALSE,
		state          TEXT NOT NULL,
		result         JSONB,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)
`

const uniqueViolation = "23505"

// SessionRepository is a PostgreSQL implementation of repository.SessionRepository.
type SessionRepository struct {
	q Querier
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{q: db}
}

// EnsureSchema creates the sessions table if it does not exist.
func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, sessionSchema)
	return err
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session *domain.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions
			(order_id, customer_id, amount, donor, flow, ticket, data_key, token_consumed, state, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	donor, result, err := encodeSessionJSON(session)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		session.OrderID,
		session.CustomerID,
		session.Amount,
		donor,
		session.Flow,
		session.Ticket,
		session.DataKey,
		session.TokenConsumed,
		session.State,
		result,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrAlreadyExists
		}
		return err
	}

	return nil
}

// GetByOrderID retrieves a session by order id.
func (r *SessionRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.CheckoutSession, error) {
	query := `
		SELECT order_id, customer_id, amount, donor, flow, ticket, data_key, token_consumed, state, result, created_at, updated_at
		FROM checkout_sessions WHERE order_id = $1
	`

	var (
		session domain.CheckoutSession
		donor   []byte
		result  []byte
	)
	err := r.q.QueryRowContext(ctx, query, orderID).Scan(
		&session.OrderID,
		&session.CustomerID,
		&session.Amount,
		&donor,
		&session.Flow,
		&session.Ticket,
		&session.DataKey,
		&session.TokenConsumed,
		&session.State,
		&result,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if len(donor) > 0 {
		session.Donor = &domain.Donor{}
		if err := json.Unmarshal(donor, session.Donor); err != nil {
			return nil, err
		}
	}
	if len(result) > 0 {
		session.Result = &domain.Settlement{}
		if err := json.Unmarshal(result, session.Result); err != nil {
			return nil, err
		}
	}

	return &session, nil
}

// Update replaces an existing session. Order id, customer id, amount and
// creation time are immutable and never rewritten.
func (r *SessionRepository) Update(ctx context.Context, session *domain.CheckoutSession) error {
	query := `
		UPDATE checkout_sessions
		SET donor = $1, ticket = $2, data_key = $3, token_consumed = $4, state = $5, result = $6, updated_at = $7
		WHERE order_id = $8
	`

	donor, result, err := encodeSessionJSON(session)
	if err != nil {
		return err
	}

	res, err := r.q.ExecContext(ctx, query,
		donor,
		session.Ticket,
		session.DataKey,
		session.TokenConsumed,
		session.State,
		result,
		session.UpdatedAt,
		session.OrderID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// encodeSessionJSON returns untyped nils for absent donor/result so the columns stay NULL.
func encodeSessionJSON(session *domain.CheckoutSession) (donor, result any, err error) {
	if session.Donor != nil {
		b, err := json.Marshal(session.Donor)
		if err != nil {
			return nil, nil, err
		}
		donor = string(b)
	}
	if session.Result != nil {
		b, err := json.Marshal(session.Result)
		if err != nil {
			return nil, nil, err
		}
		result = string(b)
	}
	return donor, result, nil
}
