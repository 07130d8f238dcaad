package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"donation/internal/domain"
	"donation/internal/repository"
)

// execQuerier records ExecContext calls and answers with a fixed result.
type execQuerier struct {
	Querier
	args     []any
	err      error
	affected int64
}

func (q *execQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q.args = args
	if q.err != nil {
		return nil, q.err
	}
	return driverResult(q.affected), nil
}

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

func testSession() *domain.CheckoutSession {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	return &domain.CheckoutSession{
		OrderID:    "DON-1",
		CustomerID: "CUST-1",
		Amount:     decimal.RequireFromString("5.00"),
		Flow:       domain.FlowHostedCheckout,
		State:      domain.SessionStateTicketIssued,
		Ticket:     "abc123",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestEncodeSessionJSON_AbsentValuesStayNull(t *testing.T) {
	donor, result, err := encodeSessionJSON(testSession())
	require.NoError(t, err)
	require.Nil(t, donor)
	require.Nil(t, result)
}

func TestEncodeSessionJSON_RoundTrips(t *testing.T) {
	session := testSession()
	session.Donor = &domain.Donor{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	session.Result = &domain.Settlement{
		Approved:      true,
		TransactionID: "txn-1",
		ResponseCode:  "027",
		Amount:        decimal.RequireFromString("5.00"),
	}

	donor, result, err := encodeSessionJSON(session)
	require.NoError(t, err)

	var gotDonor domain.Donor
	require.NoError(t, json.Unmarshal([]byte(donor.(string)), &gotDonor))
	require.Equal(t, *session.Donor, gotDonor)

	var gotResult domain.Settlement
	require.NoError(t, json.Unmarshal([]byte(result.(string)), &gotResult))
	require.True(t, gotResult.Approved)
	require.Equal(t, "txn-1", gotResult.TransactionID)
	require.True(t, gotResult.Amount.Equal(session.Result.Amount))
}

func TestSessionRepository_CreateDuplicate(t *testing.T) {
	q := &execQuerier{err: &pq.Error{Code: uniqueViolation}}
	repo := &SessionRepository{q: q}

	err := repo.Create(context.Background(), testSession())
	require.ErrorIs(t, err, repository.ErrAlreadyExists)
	require.Equal(t, "DON-1", q.args[0])
}

func TestSessionRepository_UpdateMissingRow(t *testing.T) {
	q := &execQuerier{affected: 0}
	repo := &SessionRepository{q: q}

	err := repo.Update(context.Background(), testSession())
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.Equal(t, "DON-1", q.args[len(q.args)-1])

	q.affected = 1
	require.NoError(t, repo.Update(context.Background(), testSession()))
}
