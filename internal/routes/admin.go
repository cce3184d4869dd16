package routes

import "github.com/gofiber/fiber/v2"

// RegisterAdminRoutes wires the admin console. The router must already carry
// the authentication and admin role guards.
func RegisterAdminRoutes(r fiber.Router, h handlers) {
	r.Get("/dashboard", h.ballot.Dashboard)

	r.Get("/candidates", h.ballot.ListCandidates)
	r.Post("/candidates", h.ballot.CreateCandidate)
	r.Get("/candidates/:id", h.ballot.GetCandidate)
	r.Put("/candidates/:id", h.ballot.UpdateCandidate)
	r.Post("/candidates/:id", h.ballot.UpdateCandidate)
	r.Delete("/candidates/:id", h.ballot.DeleteCandidate)

	r.Get("/users", h.identity.ListUsers)
	r.Post("/users/:id/block", h.identity.Block)
	r.Post("/users/:id/unblock", h.identity.Unblock)

	r.Get("/vote-logs", h.ballot.VoteLogs)
}
