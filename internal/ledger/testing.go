package ledger

import (
	"github.com/votewise/votewise/internal/ballot"
	"github.com/votewise/votewise/internal/identity"
)

// MemoryStores bundles the in-memory stores behind an in-memory ledger.
type MemoryStores struct {
	Users      *identity.MemoryRepository
	Candidates *ballot.MemoryRepository
	Ledger     Ledger
}

// NewMemoryStores wires fresh in-memory stores to an in-memory ledger. Used
// by the memory store driver and by tests.
func NewMemoryStores() MemoryStores {
	users := identity.NewMemoryRepository()
	candidates := ballot.NewMemoryRepository()
	return MemoryStores{Users: users, Candidates: candidates, Ledger: NewInMemory(users, candidates)}
}
