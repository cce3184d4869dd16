package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository is an in-memory user store used by tests and the memory
// store driver.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an empty in-memory user store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]User)}
}

func (r *MemoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) || existing.Mobile == user.Mobile || existing.NationalID == user.NationalID {
			return ErrDuplicateRegistration
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return withoutHash(user), nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	user, err := r.FindCredentials(ctx, email)
	if err != nil {
		return User{}, err
	}
	return withoutHash(user), nil
}

func (r *MemoryRepository) FindCredentials(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, id string, update ProfileUpdate) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if update.Mobile != nil {
		for otherID, other := range r.users {
			if otherID != id && other.Mobile == *update.Mobile {
				return User{}, ErrDuplicateRegistration
			}
		}
	}
	update.Apply(&user)
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return withoutHash(user), nil
}

func (r *MemoryRepository) SetBlocked(_ context.Context, id string, blocked bool) error {
	return r.update(id, func(u *User) error {
		u.IsBlocked = blocked
		return nil
	})
}

func (r *MemoryRepository) CountAll(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, withoutHash(user))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *MemoryRepository) MarkVoted(_ context.Context, id string) error {
	return r.update(id, func(u *User) error {
		if u.IsVoted {
			return ErrAlreadyVoted
		}
		u.IsVoted = true
		return nil
	})
}

// ClearVoted resets the vote flag. The memory ledger uses it to undo a
// claim when the candidate side of a vote fails.
func (r *MemoryRepository) ClearVoted(_ context.Context, id string) error {
	return r.update(id, func(u *User) error {
		u.IsVoted = false
		return nil
	})
}

func (r *MemoryRepository) update(id string, fn func(*User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if err := fn(&user); err != nil {
		return err
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}

func withoutHash(user User) User {
	user.PasswordHash = nil
	return user
}
