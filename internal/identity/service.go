package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/votewise/votewise/internal/notification"
	"github.com/votewise/votewise/internal/validation"
)

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrBlocked is returned when a blocked account tries to log in.
	ErrBlocked = errors.New("account blocked")
)

// Service manages the account lifecycle.
type Service struct {
	repo     Repository
	cost     int
	notifier notification.Notifier
}

// NewService creates a new identity service hashing passwords with the
// given bcrypt cost.
func NewService(repo Repository, cost int, notifier notification.Notifier) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, cost: cost, notifier: notifier}
}

// Register creates a voter account. The role is always RoleVoter.
func (s *Service) Register(ctx context.Context, in SignupInput) (User, error) {
	return s.create(ctx, in, RoleVoter)
}

// SeedAdmin creates an admin account unless one with the same email exists.
// The second return value reports whether a new account was created.
func (s *Service) SeedAdmin(ctx context.Context, in SignupInput) (User, bool, error) {
	existing, err := s.repo.FindByEmail(ctx, normalizeEmail(in.Email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, false, err
	}
	user, err := s.create(ctx, in, RoleAdmin)
	if err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

func (s *Service) create(ctx context.Context, in SignupInput, role Role) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.NationalID = strings.TrimSpace(in.NationalID)
	in.Address = strings.TrimSpace(in.Address)
	if err := validation.Struct(in); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	user := User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Age:          in.Age,
		Email:        in.Email,
		Mobile:       in.Mobile,
		NationalID:   in.NationalID,
		Address:      in.Address,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return withoutHash(user), nil
}

// Authenticate verifies voter-path credentials. Blocked accounts are
// rejected with ErrBlocked once the password has been verified.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	if err := validation.Struct(creds); err != nil {
		return User{}, err
	}
	user, err := s.repo.FindCredentials(ctx, normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if user.IsBlocked {
		return User{}, ErrBlocked
	}
	return withoutHash(user), nil
}

// AuthenticateAdmin is Authenticate restricted to admin accounts.
func (s *Service) AuthenticateAdmin(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.Authenticate(ctx, creds)
	if err != nil {
		return User{}, err
	}
	if user.Role != RoleAdmin {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the stored user.
func (s *Service) Profile(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProfile changes name, age, mobile or address. Identity and role
// fields are not reachable from here.
func (s *Service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error) {
	update = trimUpdate(update)
	if update.Empty() {
		return User{}, validation.Errorf("no valid fields to update")
	}
	if update.Age != nil && *update.Age < 1 {
		return User{}, validation.Errorf("age must be at least 1")
	}
	return s.repo.UpdateProfile(ctx, id, update)
}

// SetBlocked blocks or unblocks an account.
func (s *Service) SetBlocked(ctx context.Context, id string, blocked bool) error {
	if err := s.repo.SetBlocked(ctx, id, blocked); err != nil {
		return err
	}
	if blocked && s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindAccountBlocked,
			Destination: id,
			Body:        "Your account has been blocked by an administrator",
		})
	}
	return nil
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Count returns the number of accounts.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.CountAll(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// trimUpdate drops fields that are blank after trimming, matching the form
// semantics where an empty input means "unchanged".
func trimUpdate(u ProfileUpdate) ProfileUpdate {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		if v == "" {
			return nil
		}
		return &v
	}
	u.Name = trim(u.Name)
	u.Mobile = trim(u.Mobile)
	u.Address = trim(u.Address)
	return u
}
