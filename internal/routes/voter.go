package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/votewise/votewise/internal/ballot"
	"github.com/votewise/votewise/internal/identity"
	"github.com/votewise/votewise/internal/middleware"
)

// RegisterVoterRoutes wires the endpoints available to any signed-in account.
func RegisterVoterRoutes(r fiber.Router, h handlers, idempotency fiber.Handler) {
	r.Get("/profile", func(c *fiber.Ctx) error {
		user, err := currentUser(c, h.users)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"user": identity.NewProfileView(user)})
	})

	updateProfile := func(c *fiber.Ctx) error {
		caller, ok := middleware.CurrentIdentity(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "authentication required")
		}
		var req identity.ProfileUpdateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
		user, err := h.users.UpdateProfile(c.UserContext(), caller.UserID, req.ToUpdate())
		if err != nil {
			return identity.Error(err)
		}
		return c.JSON(fiber.Map{"user": identity.NewProfileView(user), "redirect": voterHome})
	}
	r.Post("/profile/update", updateProfile)
	r.Patch("/profile/update", updateProfile)

	r.Get("/candidates", func(c *fiber.Ctx) error {
		user, err := currentUser(c, h.users)
		if err != nil {
			return err
		}
		candidates, err := h.results.List(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"candidates": ballot.CandidateSummaries(candidates),
			"user":       fiber.Map{"id": user.ID, "is_voted": user.IsVoted},
			"success":    c.Query("success"),
			"error":      c.Query("error"),
		})
	})

	r.Post("/vote/:candidateId", idempotency, h.voting.Vote)

	r.Get("/results", func(c *fiber.Ctx) error {
		user, err := currentUser(c, h.users)
		if err != nil {
			return err
		}
		results, err := h.results.ListResults(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"results": results, "user": identity.NewProfileView(user)})
	})
	r.Get("/results-data", h.ballot.Results)
}

func currentUser(c *fiber.Ctx, users *identity.Service) (identity.User, error) {
	caller, ok := middleware.CurrentIdentity(c)
	if !ok {
		return identity.User{}, fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	user, err := users.Profile(c.UserContext(), caller.UserID)
	if err != nil {
		return identity.User{}, identity.Error(err)
	}
	return user, nil
}
