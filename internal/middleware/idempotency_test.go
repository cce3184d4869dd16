package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/votewise/votewise/internal/auth"
	"github.com/votewise/votewise/internal/identity"
	"github.com/votewise/votewise/internal/logging"
)

func setupIdempotencyApp(t *testing.T) (*fiber.App, *auth.TokenService, *int32) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	tokens := auth.NewTokenService("idem-secret", time.Hour)
	guard := GuardConfig{Tokens: tokens, CookieName: testCookie}
	var calls int32

	app := fiber.New()
	app.Post("/vote/:id",
		RequireAuthenticated(guard),
		Idempotency(cache, time.Minute, logging.Discard()),
		func(c *fiber.Ctx) error {
			n := atomic.AddInt32(&calls, 1)
			ident, _ := CurrentIdentity(c)
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{"voter": ident.UserID, "call": n})
		})
	return app, tokens, &calls
}

func post(t *testing.T, app *fiber.App, tokens *auth.TokenService, voter, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/vote/c1", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issue(t, tokens, voter, identity.RoleVoter))
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	app, tokens, calls := setupIdempotencyApp(t)

	for i := 0; i < 2; i++ {
		if status, _ := post(t, app, tokens, "voter-1", ""); status != fiber.StatusCreated {
			t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
		}
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected handler to run twice, ran %d", atomic.LoadInt32(calls))
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, tokens, calls := setupIdempotencyApp(t)

	status, first := post(t, app, tokens, "voter-1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	// The replay must not reach the handler again.
	status, second := post(t, app, tokens, "voter-1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if second != first {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected one handler call, got %d", atomic.LoadInt32(calls))
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(second), &decoded); err != nil {
		t.Fatalf("cached payload invalid json: %v", err)
	}
}

func TestIdempotencyKeysAreScopedToCaller(t *testing.T) {
	app, tokens, calls := setupIdempotencyApp(t)

	_, first := post(t, app, tokens, "voter-1", "shared")
	_, second := post(t, app, tokens, "voter-2", "shared")
	if first == second {
		t.Fatalf("voter-2 received voter-1's response: %s", second)
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected two handler calls, got %d", atomic.LoadInt32(calls))
	}
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	app, tokens, calls := setupIdempotencyApp(t)

	status, _ := post(t, app, tokens, "voter-1", strings.Repeat("k", maxIdempotencyKeyLen+1))
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("handler must not run for a rejected key")
	}
}
