package identity

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/votewise/votewise/internal/validation"
)

func signup(email, mobile, nationalID string) SignupInput {
	return SignupInput{
		Name:       "Ada Voter",
		Age:        30,
		Email:      email,
		Mobile:     mobile,
		Password:   "s3cret",
		NationalID: nationalID,
		Address:    "1 Main Street",
	}
}

func newTestService() (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewService(repo, bcrypt.MinCost, nil), repo
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, signup("Ada@Example.com ", "555-0100", "ID-000123456"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleVoter {
		t.Fatalf("expected voter role, got %s", user.Role)
	}
	if user.IsVoted || user.IsBlocked {
		t.Fatalf("new account should be unvoted and unblocked: %+v", user)
	}
	if user.PasswordHash != nil {
		t.Fatalf("register must not return the password hash")
	}

	stored, err := repo.FindCredentials(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("find credentials: %v", err)
	}
	if string(stored.PasswordHash) == "s3cret" {
		t.Fatalf("password stored in plain text")
	}

	authed, err := svc.Authenticate(ctx, Credentials{Email: "ADA@example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected %s got %s", user.ID, authed.ID)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, signup("ada@example.com", "555-0100", "ID-1")); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "s3cret"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "", Password: ""}); !errors.Is(err, validation.ErrInvalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthenticateBlockedAccount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	user, err := svc.Register(ctx, signup("ada@example.com", "555-0100", "ID-1"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.SetBlocked(ctx, user.ID, true); err != nil {
		t.Fatalf("block: %v", err)
	}

	if _, err := svc.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "s3cret"}); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	// A wrong password on a blocked account does not reveal the block.
	if _, err := svc.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := svc.SetBlocked(ctx, user.ID, false); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if _, err := svc.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "s3cret"}); err != nil {
		t.Fatalf("authenticate after unblock: %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, signup("ada@example.com", "555-0100", "ID-1")); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := map[string]SignupInput{
		"email":       signup("ADA@example.com", "555-0199", "ID-2"),
		"mobile":      signup("bob@example.com", "555-0100", "ID-3"),
		"national id": signup("eve@example.com", "555-0198", "ID-1"),
	}
	for name, in := range cases {
		if _, err := svc.Register(ctx, in); !errors.Is(err, ErrDuplicateRegistration) {
			t.Fatalf("%s: expected ErrDuplicateRegistration, got %v", name, err)
		}
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, _ := newTestService()
	in := signup("not-an-email", "555-0100", "ID-1")
	in.Age = 0
	if _, err := svc.Register(context.Background(), in); !errors.Is(err, validation.ErrInvalid) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthenticateAdminRequiresAdminRole(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, signup("voter@example.com", "555-0100", "ID-1")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.AuthenticateAdmin(ctx, Credentials{Email: "voter@example.com", Password: "s3cret"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected voter to be refused admin login, got %v", err)
	}

	admin, created, err := svc.SeedAdmin(ctx, signup("admin@example.com", "555-0900", "ID-9"))
	if err != nil || !created {
		t.Fatalf("seed admin: created=%v err=%v", created, err)
	}
	if admin.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %s", admin.Role)
	}
	if _, err := svc.AuthenticateAdmin(ctx, Credentials{Email: "admin@example.com", Password: "s3cret"}); err != nil {
		t.Fatalf("admin login: %v", err)
	}

	again, created, err := svc.SeedAdmin(ctx, signup("admin@example.com", "555-0900", "ID-9"))
	if err != nil || created {
		t.Fatalf("second seed should be a no-op: created=%v err=%v", created, err)
	}
	if again.ID != admin.ID {
		t.Fatalf("expected existing admin %s, got %s", admin.ID, again.ID)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	user, err := svc.Register(ctx, signup("ada@example.com", "555-0100", "ID-1"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	name, blank := "Ada Lovelace", "   "
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Name: &name, Address: &blank})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.Address != "1 Main Street" {
		t.Fatalf("unexpected profile %+v", updated)
	}
	if updated.Email != user.Email || updated.Role != RoleVoter || updated.IsVoted {
		t.Fatalf("protected fields changed: %+v", updated)
	}

	if _, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Address: &blank}); !errors.Is(err, validation.ErrInvalid) {
		t.Fatalf("expected validation error for empty update, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, "missing", ProfileUpdate{Name: &name}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMarkVotedOnlyOnce(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	user, err := svc.Register(ctx, signup("ada@example.com", "555-0100", "ID-1"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := repo.MarkVoted(ctx, user.ID); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := repo.MarkVoted(ctx, user.ID); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if err := repo.MarkVoted(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestNationalIDLast4(t *testing.T) {
	if got := (User{NationalID: "ID-000123456"}).NationalIDLast4(); got != "3456" {
		t.Fatalf("expected 3456 got %s", got)
	}
	if got := (User{NationalID: "12"}).NationalIDLast4(); got != "12" {
		t.Fatalf("expected 12 got %s", got)
	}
}
