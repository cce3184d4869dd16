package ballot

import "time"

// Vote is one entry in a candidate's append-only vote ledger.
type Vote struct {
	ID      string
	VoterID string
	VotedAt time.Time
}

// Candidate is a ballot entry. VoteCount always equals len(Votes).
type Candidate struct {
	ID        string
	Name      string
	Party     string
	Age       int
	Votes     []Vote
	VoteCount int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SortOrder selects the ordering returned by Repository.FindAll.
type SortOrder int

const (
	// SortCreated lists candidates in the order they were added.
	SortCreated SortOrder = iota
	// SortByName lists candidates alphabetically.
	SortByName
	// SortByVotes lists candidates by descending vote count, ties by name.
	SortByVotes
)

// CandidateInput is the admin-submitted candidate form.
type CandidateInput struct {
	Name  string `json:"name" form:"name" validate:"required"`
	Party string `json:"party" form:"party" validate:"required"`
	Age   int    `json:"age" form:"age" validate:"required,gte=1"`
}

// Result is one row of the tally.
type Result struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Party   string  `json:"party"`
	Votes   int64   `json:"votes"`
	Percent float64 `json:"percent"`
}

// Results is the tally across all candidates.
type Results struct {
	TotalVotes int64    `json:"totalVotes"`
	Candidates []Result `json:"candidates"`
}

// Dashboard holds the admin overview counters.
type Dashboard struct {
	TotalUsers      int64 `json:"totalUsers"`
	TotalCandidates int64 `json:"totalCandidates"`
	TotalVotes      int64 `json:"totalVotes"`
}

// VoteLogEntry is a vote joined with the voter's contact details.
type VoteLogEntry struct {
	VoteID     string    `json:"vote_id"`
	VoterID    string    `json:"voter_id"`
	VoterName  string    `json:"voter_name"`
	VoterEmail string    `json:"voter_email"`
	Mobile     string    `json:"voter_mobile"`
	VotedAt    time.Time `json:"voted_at"`
}

// VoteLog lists one candidate's ledger.
type VoteLog struct {
	CandidateID string         `json:"candidate_id"`
	Name        string         `json:"name"`
	Party       string         `json:"party"`
	VoteCount   int64          `json:"vote_count"`
	Votes       []VoteLogEntry `json:"votes"`
}
