package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/votewise/votewise/internal/middleware"
)

const (
	voterHome = "/api/v1/profile"
	adminHome = "/admin/dashboard"
)

// RegisterPublicRoutes wires the signup and session endpoints that need no token.
func RegisterPublicRoutes(r fiber.Router, h handlers, guard middleware.GuardConfig, loginLimiter fiber.Handler) {
	r.Get("/signup-page", middleware.RedirectIfAuthenticated(guard, voterHome), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"page":   "signup",
			"fields": []string{"name", "age", "email", "mobile", "password", "national_id", "address"},
			"action": "/api/v1/signup",
		})
	})
	r.Post("/signup", h.identity.Signup)

	r.Get("/login-page", middleware.RedirectIfAuthenticated(guard, voterHome), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"page":    "login",
			"action":  "/api/v1/login",
			"success": c.Query("success"),
			"blocked": c.Query("blocked") == "1",
		})
	})
	r.Post("/login", loginLimiter, h.auth.Login)
	r.Get("/logout", h.auth.Logout)
	r.Post("/logout", h.auth.Logout)
}

// RegisterAdminSessionRoutes wires the admin login and logout endpoints.
func RegisterAdminSessionRoutes(r fiber.Router, h handlers, loginLimiter fiber.Handler) {
	r.Post("/login", loginLimiter, h.auth.AdminLogin)
	r.Get("/logout", h.auth.Logout)
	r.Post("/logout", h.auth.Logout)
}
