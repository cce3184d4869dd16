package ballot

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/votewise/votewise/internal/identity"
)

// ErrCandidateNotFound is returned when no candidate matches the id.
var ErrCandidateNotFound = errors.New("candidate not found")

// Repository persists candidates and their vote ledgers.
type Repository interface {
	FindAll(ctx context.Context, order SortOrder) ([]Candidate, error)
	FindByID(ctx context.Context, id string) (Candidate, error)
	Create(ctx context.Context, candidate Candidate) error
	Update(ctx context.Context, id string, in CandidateInput) (Candidate, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	TotalVotes(ctx context.Context) (int64, error)
	// AppendVote adds vote to the ledger and bumps the counter in one write.
	AppendVote(ctx context.Context, candidateID string, vote Vote) error
}

const candidateColumns = `id, name, party, age, vote_count, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed candidate repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func orderClause(order SortOrder) string {
	switch order {
	case SortByName:
		return ` ORDER BY name, created_at`
	case SortByVotes:
		return ` ORDER BY vote_count DESC, name`
	default:
		return ` ORDER BY created_at, id`
	}
}

// FindAll returns every candidate with its ledger.
func (r *PostgresRepository) FindAll(ctx context.Context, order SortOrder) ([]Candidate, error) {
	rows, err := r.db.Query(ctx, `SELECT `+candidateColumns+` FROM candidates`+orderClause(order))
	if err != nil {
		return nil, err
	}
	var candidates []Candidate
	index := make(map[string]int)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[c.ID] = len(candidates)
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	voteRows, err := r.db.Query(ctx, `SELECT id, candidate_id, user_id, voted_at FROM votes ORDER BY voted_at, id`)
	if err != nil {
		return nil, err
	}
	defer voteRows.Close()
	for voteRows.Next() {
		var (
			v           Vote
			candidateID uuid.UUID
			voterID     uuid.UUID
		)
		if err := voteRows.Scan(&v.ID, &candidateID, &voterID, &v.VotedAt); err != nil {
			return nil, err
		}
		v.VoterID = voterID.String()
		v.VotedAt = v.VotedAt.UTC()
		if i, ok := index[candidateID.String()]; ok {
			candidates[i].Votes = append(candidates[i].Votes, v)
		}
	}
	return candidates, voteRows.Err()
}

// FindByID fetches a candidate and its ledger.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Candidate, error) {
	candidateID, err := uuid.Parse(id)
	if err != nil {
		return Candidate{}, ErrCandidateNotFound
	}
	c, err := scanCandidate(r.db.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, candidateID))
	if err != nil {
		return Candidate{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, user_id, voted_at FROM votes WHERE candidate_id = $1 ORDER BY voted_at, id`, candidateID)
	if err != nil {
		return Candidate{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			v       Vote
			voterID uuid.UUID
		)
		if err := rows.Scan(&v.ID, &voterID, &v.VotedAt); err != nil {
			return Candidate{}, err
		}
		v.VoterID = voterID.String()
		v.VotedAt = v.VotedAt.UTC()
		c.Votes = append(c.Votes, v)
	}
	return c, rows.Err()
}

// Create inserts a candidate with an empty ledger.
func (r *PostgresRepository) Create(ctx context.Context, c Candidate) error {
	candidateID, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO candidates (id, name, party, age, vote_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 0, $5, $6)`,
		candidateID, c.Name, c.Party, c.Age, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	return err
}

// Update replaces name, party and age. The ledger is untouched.
func (r *PostgresRepository) Update(ctx context.Context, id string, in CandidateInput) (Candidate, error) {
	candidateID, err := uuid.Parse(id)
	if err != nil {
		return Candidate{}, ErrCandidateNotFound
	}
	return scanCandidate(r.db.QueryRow(ctx, `UPDATE candidates SET name = $2, party = $3, age = $4, updated_at = NOW()
        WHERE id = $1 RETURNING `+candidateColumns, candidateID, in.Name, in.Party, in.Age))
}

// Delete removes a candidate; its votes cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	candidateID, err := uuid.Parse(id)
	if err != nil {
		return ErrCandidateNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM candidates WHERE id = $1`, candidateID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCandidateNotFound
	}
	return nil
}

// Count returns the number of candidates.
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM candidates`).Scan(&n)
	return n, err
}

// TotalVotes sums every candidate's counter.
func (r *PostgresRepository) TotalVotes(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(vote_count), 0)::BIGINT FROM candidates`).Scan(&n)
	return n, err
}

// AppendVote records vote against the candidate.
func (r *PostgresRepository) AppendVote(ctx context.Context, candidateID string, vote Vote) error {
	return AppendVoteTx(ctx, r.db, candidateID, vote)
}

// AppendVoteTx inserts the ledger row and bumps vote_count in one statement
// on db, which may be a transaction shared with the voter update.
func AppendVoteTx(ctx context.Context, db identity.Execer, candidateID string, vote Vote) error {
	cid, err := uuid.Parse(candidateID)
	if err != nil {
		return ErrCandidateNotFound
	}
	voterID, err := uuid.Parse(vote.VoterID)
	if err != nil {
		return identity.ErrUserNotFound
	}
	cmd, err := db.Exec(ctx, `WITH bumped AS (
            UPDATE candidates SET vote_count = vote_count + 1, updated_at = NOW()
            WHERE id = $1 RETURNING id
        )
        INSERT INTO votes (id, candidate_id, user_id, voted_at)
        SELECT $2, bumped.id, $3, $4 FROM bumped`,
		cid, vote.ID, voterID, vote.VotedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return identity.ErrAlreadyVoted
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCandidateNotFound
	}
	return nil
}

func scanCandidate(row pgx.Row) (Candidate, error) {
	var (
		id uuid.UUID
		c  Candidate
	)
	if err := row.Scan(&id, &c.Name, &c.Party, &c.Age, &c.VoteCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Candidate{}, ErrCandidateNotFound
		}
		return Candidate{}, err
	}
	c.ID = id.String()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}
