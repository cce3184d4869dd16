package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/votewise/votewise/internal/identity"
	"github.com/votewise/votewise/internal/metrics"
	"github.com/votewise/votewise/internal/validation"
)

// CookieOptions controls the session cookie written on login.
type CookieOptions struct {
	Name   string
	Secure bool
}

// Handler exposes login and logout endpoints for voters and admins.
type Handler struct {
	users   *identity.Service
	tokens  *TokenService
	revoker Revoker
	cookie  CookieOptions
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler wires the session endpoints. revoker may be nil, in which case
// logout only clears the cookie.
func NewHandler(users *identity.Service, tokens *TokenService, revoker Revoker, cookie CookieOptions, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if cookie.Name == "" {
		cookie.Name = "token"
	}
	return &Handler{users: users, tokens: tokens, revoker: revoker, cookie: cookie, metrics: m, logger: logger}
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Redirect  string    `json:"redirect"`
}

// Login authenticates a voter and issues a token.
func (h *Handler) Login(c *fiber.Ctx) error {
	return h.login(c, h.users.Authenticate, "/api/v1/profile")
}

// AdminLogin authenticates an admin and issues a token.
func (h *Handler) AdminLogin(c *fiber.Ctx) error {
	return h.login(c, h.users.AuthenticateAdmin, "/admin/dashboard")
}

type authenticateFunc func(ctx context.Context, creds identity.Credentials) (identity.User, error)

func (h *Handler) login(c *fiber.Ctx, authenticate authenticateFunc, redirect string) error {
	var creds identity.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, err := authenticate(c.UserContext(), creds)
	switch {
	case errors.Is(err, validation.ErrInvalid):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		h.metrics.LoginAttempt(metrics.LoginInvalid)
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, identity.ErrBlocked):
		h.metrics.LoginAttempt(metrics.LoginBlocked)
		return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": err.Error(), "blocked": true})
	case err != nil:
		return err
	}

	token, exp, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return err
	}
	h.metrics.LoginAttempt(metrics.LoginSuccess)
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	if h.logger != nil {
		h.logger.InfoContext(c.UserContext(), "login succeeded",
			slog.String("user_id", user.ID),
			slog.String("role", string(user.Role)),
		)
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		Token:     token,
		ExpiresAt: exp.UTC(),
		UserID:    user.ID,
		Name:      user.Name,
		Role:      string(user.Role),
		Redirect:  redirect,
	})
}

// Logout clears the session cookie and, when revocation is enabled, revokes
// the presented token until it would have expired.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if token := TokenFromRequest(c, h.cookie.Name); token != "" && h.revoker != nil {
		if exp, err := h.tokens.ExpiresAt(token); err == nil {
			if err := h.revoker.Revoke(c.UserContext(), token, exp); err != nil {
				return err
			}
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// TokenFromRequest reads a bearer token from the Authorization header and
// falls back to the session cookie.
func TokenFromRequest(c *fiber.Ctx, cookieName string) string {
	authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return c.Cookies(cookieName)
}
