package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateRegistration signals a clash on email, mobile or national ID.
	ErrDuplicateRegistration = errors.New("user with this email/mobile/national id already exists")
	// ErrAlreadyVoted is returned by MarkVoted when the flag was already set.
	ErrAlreadyVoted = errors.New("user has already voted")
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	// FindCredentials is FindByEmail including the password hash.
	FindCredentials(ctx context.Context, email string) (User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error)
	SetBlocked(ctx context.Context, id string, blocked bool) error
	CountAll(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]User, error)
	// MarkVoted flips isVoted from false to true in a single conditional write.
	MarkVoted(ctx context.Context, id string) error
}

const userColumns = `id, name, age, email, mobile, national_id, address, role, is_blocked, is_voted, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, name, age, email, mobile, national_id, address, password_hash, role, is_blocked, is_voted, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		userID, user.Name, user.Age, user.Email, user.Mobile, user.NationalID, user.Address, user.PasswordHash,
		string(user.Role), user.IsBlocked, user.IsVoted, user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicateRegistration
	}
	return err
}

// FindByID fetches a user by identifier, without the password hash.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// FindByEmail fetches a user by email, without the password hash.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindCredentials fetches a user by email including the password hash.
func (r *PostgresRepository) FindCredentials(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`, email)
	var (
		id   uuid.UUID
		role string
		user User
	)
	if err := row.Scan(&id, &user.Name, &user.Age, &user.Email, &user.Mobile, &user.NationalID, &user.Address,
		&role, &user.IsBlocked, &user.IsVoted, &user.CreatedAt, &user.UpdatedAt, &user.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return finishUser(user, id, role), nil
}

// UpdateProfile applies the set fields of update and returns the stored user.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	row := r.db.QueryRow(ctx, `UPDATE users SET
            name = COALESCE($2, name),
            age = COALESCE($3, age),
            mobile = COALESCE($4, mobile),
            address = COALESCE($5, address),
            updated_at = NOW()
        WHERE id = $1
        RETURNING `+userColumns, userID, update.Name, update.Age, update.Mobile, update.Address)
	user, err := scanUser(row)
	if isUniqueViolation(err) {
		return User{}, ErrDuplicateRegistration
	}
	return user, err
}

// SetBlocked toggles the admin-controlled block flag.
func (r *PostgresRepository) SetBlocked(ctx context.Context, id string, blocked bool) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrUserNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET is_blocked = $1, updated_at = NOW() WHERE id = $2`, blocked, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountAll returns the number of registered users.
func (r *PostgresRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// List returns every user ordered by registration time.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// MarkVoted sets is_voted only when it is still false.
func (r *PostgresRepository) MarkVoted(ctx context.Context, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrUserNotFound
	}
	return MarkVotedTx(ctx, r.db, userID)
}

// Execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MarkVotedTx runs the conditional vote-flag update on db, which may be a
// transaction shared with the candidate update.
func MarkVotedTx(ctx context.Context, db Execer, userID uuid.UUID) error {
	cmd, err := db.Exec(ctx, `UPDATE users SET is_voted = TRUE, updated_at = NOW() WHERE id = $1 AND is_voted = FALSE`, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return ErrAlreadyVoted
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id   uuid.UUID
		role string
		user User
	)
	if err := row.Scan(&id, &user.Name, &user.Age, &user.Email, &user.Mobile, &user.NationalID, &user.Address,
		&role, &user.IsBlocked, &user.IsVoted, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return finishUser(user, id, role), nil
}

func finishUser(user User, id uuid.UUID, role string) User {
	user.ID = id.String()
	user.Role = Role(role)
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
