package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votewise/votewise/internal/ballot"
	"github.com/votewise/votewise/internal/identity"
)

// PostgresLedger records votes in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Record claims the voter with a conditional update and appends the vote in
// the same transaction. A concurrent claim for the same voter blocks on the
// row lock and then matches no row, so it reports ErrAlreadyVoted.
func (l *PostgresLedger) Record(ctx context.Context, voterID, candidateID string, at time.Time) (Receipt, error) {
	uid, err := uuid.Parse(voterID)
	if err != nil {
		return Receipt{}, identity.ErrUserNotFound
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Receipt{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := identity.MarkVotedTx(ctx, tx, uid); err != nil {
		return Receipt{}, err
	}
	receipt := newReceipt(voterID, candidateID, at)
	if err := ballot.AppendVoteTx(ctx, tx, candidateID, receipt.vote()); err != nil {
		return Receipt{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}
