package ballot

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/votewise/votewise/internal/validation"
)

// Handler exposes candidate and tally endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a ballot HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CandidateView renders a candidate without its ledger.
type CandidateView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Party     string    `json:"party"`
	Age       int       `json:"age"`
	VoteCount int64     `json:"vote_count"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(c Candidate) CandidateView {
	return CandidateView{ID: c.ID, Name: c.Name, Party: c.Party, Age: c.Age, VoteCount: c.VoteCount, CreatedAt: c.CreatedAt}
}

// CandidateSummaries renders candidates without their ledgers.
func CandidateSummaries(candidates []Candidate) []CandidateView {
	out := make([]CandidateView, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, toResponse(c))
	}
	return out
}

// ListCandidates returns every candidate without ledgers.
func (h *Handler) ListCandidates(c *fiber.Ctx) error {
	candidates, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"candidates": CandidateSummaries(candidates)})
}

// GetCandidate returns one candidate.
func (h *Handler) GetCandidate(c *fiber.Ctx) error {
	candidate, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return Error(err)
	}
	return c.JSON(toResponse(candidate))
}

// CreateCandidate adds a candidate.
func (h *Handler) CreateCandidate(c *fiber.Ctx) error {
	var in CandidateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	candidate, err := h.service.Create(c.UserContext(), in)
	if err != nil {
		return Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(candidate))
}

// UpdateCandidate replaces a candidate's attributes.
func (h *Handler) UpdateCandidate(c *fiber.Ctx) error {
	var in CandidateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	candidate, err := h.service.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return Error(err)
	}
	return c.JSON(toResponse(candidate))
}

// DeleteCandidate removes a candidate.
func (h *Handler) DeleteCandidate(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return Error(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Results returns the tally.
func (h *Handler) Results(c *fiber.Ctx) error {
	res, err := h.service.ListResults(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// Dashboard returns the admin counters.
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.service.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"stats": stats})
}

// VoteLogs returns every ledger with voter details.
func (h *Handler) VoteLogs(c *fiber.Ctx) error {
	logs, err := h.service.VoteLogs(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"candidates": logs})
}

// Error maps ballot errors onto HTTP errors.
func Error(err error) error {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCandidateNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return err
	}
}
