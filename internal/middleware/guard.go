package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/votewise/votewise/internal/auth"
	"github.com/votewise/votewise/internal/identity"
)

const identityLocal = "identity"

// GuardConfig holds what the access guard needs to authenticate a request.
type GuardConfig struct {
	Tokens     *auth.TokenService
	Revoker    auth.Revoker // nil disables the revocation check
	CookieName string
}

// RequireAuthenticated validates the bearer header or the session cookie and
// attaches the caller to the request. The header wins when both are present.
func RequireAuthenticated(cfg GuardConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident, err := authenticate(c, cfg)
		if errors.Is(err, auth.ErrInvalidToken) {
			return fiber.NewError(http.StatusUnauthorized, "authentication required")
		}
		if err != nil {
			return err
		}
		c.Locals(identityLocal, ident)
		c.SetUserContext(auth.WithIdentity(c.UserContext(), ident))
		return c.Next()
	}
}

// RequireRole allows only callers holding role. It must run after
// RequireAuthenticated; without an identity it refuses the request.
func RequireRole(role identity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident, ok := CurrentIdentity(c)
		if !ok || ident.Role != role {
			return fiber.NewError(http.StatusForbidden, "access denied")
		}
		return c.Next()
	}
}

// RedirectIfAuthenticated sends callers that already hold a valid token to
// target. Missing or invalid tokens simply proceed.
func RedirectIfAuthenticated(cfg GuardConfig, target string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := authenticate(c, cfg); err == nil {
			return c.Redirect(target, http.StatusSeeOther)
		}
		return c.Next()
	}
}

// CurrentIdentity returns the caller attached by RequireAuthenticated.
func CurrentIdentity(c *fiber.Ctx) (auth.Identity, bool) {
	ident, ok := c.Locals(identityLocal).(auth.Identity)
	return ident, ok
}

func authenticate(c *fiber.Ctx, cfg GuardConfig) (auth.Identity, error) {
	token := auth.TokenFromRequest(c, cfg.CookieName)
	if token == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	ident, err := cfg.Tokens.Validate(token)
	if err != nil {
		return auth.Identity{}, err
	}
	if cfg.Revoker != nil {
		revoked, err := cfg.Revoker.IsRevoked(c.UserContext(), token)
		if err != nil {
			return auth.Identity{}, err
		}
		if revoked {
			return auth.Identity{}, auth.ErrInvalidToken
		}
	}
	return ident, nil
}
