package voting

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/votewise/votewise/internal/ballot"
	"github.com/votewise/votewise/internal/identity"
	"github.com/votewise/votewise/internal/middleware"
)

// Handler exposes the vote endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a voting HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Vote casts the caller's vote for the candidate in the path.
func (h *Handler) Vote(c *fiber.Ctx) error {
	caller, ok := middleware.CurrentIdentity(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	receipt, err := h.service.CastVote(c.UserContext(), caller.UserID, c.Params("candidateId"))
	if err != nil {
		return Error(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"status":  "voted",
		"receipt": receipt,
	})
}

// Error maps voting failures onto HTTP errors.
func Error(err error) error {
	switch {
	case errors.Is(err, identity.ErrAlreadyVoted):
		return fiber.NewError(http.StatusConflict, "you have already voted")
	case errors.Is(err, identity.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "voter not found")
	case errors.Is(err, ballot.ErrCandidateNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return err
	}
}
