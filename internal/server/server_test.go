package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/votewise/votewise/internal/auth"
	"github.com/votewise/votewise/internal/config"
	"github.com/votewise/votewise/internal/identity"
	"github.com/votewise/votewise/internal/logging"
)

const testSecret = "server-test-secret"

func testConfig() config.Config {
	return config.Config{
		AppName:        "VoteWise",
		AppEnv:         "test",
		Port:           "0",
		StoreDriver:    config.DriverMemory,
		JWTSecret:      testSecret,
		TokenTTL:       time.Hour,
		BcryptCost:     bcrypt.MinCost,
		CookieName:     "token",
		LoginRateLimit: 5,
		IdempotencyTTL: time.Minute,
	}
}

type harness struct {
	t     *testing.T
	app   *fiber.App
	admin string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv, err := New(testConfig(), Stores{}, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	// Admin routes trust the role claim, so a minted admin token is enough here.
	admin, _, err := auth.NewTokenService(testSecret, time.Hour).Issue("admin-1", identity.RoleAdmin)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	return &harness{t: t, app: srv.App(), admin: admin}
}

func (h *harness) call(method, path, token string, body any) (*http.Response, map[string]any) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			h.t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp, out
}

func (h *harness) createCandidate(name, party string) string {
	h.t.Helper()
	resp, body := h.call(http.MethodPost, "/admin/candidates", h.admin, map[string]any{"name": name, "party": party, "age": 45})
	if resp.StatusCode != http.StatusCreated {
		h.t.Fatalf("create candidate: expected 201 got %d %v", resp.StatusCode, body)
	}
	return body["id"].(string)
}

func (h *harness) signup(email, mobile, nationalID string) string {
	h.t.Helper()
	resp, body := h.call(http.MethodPost, "/api/v1/signup", "", map[string]any{
		"name":        "Voter " + mobile,
		"age":         30,
		"email":       email,
		"mobile":      mobile,
		"password":    "s3cret!",
		"national_id": nationalID,
		"address":     "1 Main St",
	})
	if resp.StatusCode != http.StatusCreated {
		h.t.Fatalf("signup: expected 201 got %d %v", resp.StatusCode, body)
	}
	return body["user"].(map[string]any)["id"].(string)
}

func (h *harness) login(email string) string {
	h.t.Helper()
	resp, body := h.call(http.MethodPost, "/api/v1/login", "", map[string]any{"email": email, "password": "s3cret!"})
	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("login: expected 200 got %d %v", resp.StatusCode, body)
	}
	return body["token"].(string)
}

func TestVoteFlow(t *testing.T) {
	h := newHarness(t)
	alice := h.createCandidate("Alice", "Blue")
	bob := h.createCandidate("Bob", "Green")

	h.signup("voter@example.com", "5550001", "NID-000111")
	token := h.login("voter@example.com")

	resp, body := h.call(http.MethodGet, "/api/v1/candidates", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("candidates: expected 200 got %d", resp.StatusCode)
	}
	if voted := body["user"].(map[string]any)["is_voted"].(bool); voted {
		t.Fatal("fresh voter must not be marked as voted")
	}

	resp, body = h.call(http.MethodPost, "/api/v1/vote/"+alice, token, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("vote: expected 201 got %d %v", resp.StatusCode, body)
	}

	resp, body = h.call(http.MethodPost, "/api/v1/vote/"+bob, token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second vote: expected 409 got %d %v", resp.StatusCode, body)
	}
	if body["error"] != "you have already voted" {
		t.Fatalf("unexpected error body: %v", body)
	}

	resp, body = h.call(http.MethodGet, "/api/v1/results-data", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("results: expected 200 got %d", resp.StatusCode)
	}
	if body["totalVotes"].(float64) != 1 {
		t.Fatalf("expected one vote in total, got %v", body["totalVotes"])
	}
	top := body["candidates"].([]any)[0].(map[string]any)
	if top["id"] != alice || top["votes"].(float64) != 1 || top["percent"].(float64) != 100 {
		t.Fatalf("unexpected leader: %v", top)
	}

	_, body = h.call(http.MethodGet, "/api/v1/profile", token, nil)
	if !body["user"].(map[string]any)["is_voted"].(bool) {
		t.Fatal("profile should report the vote")
	}
}

func TestVoterCannotReachAdminRoutes(t *testing.T) {
	h := newHarness(t)
	h.createCandidate("Alice", "Blue")
	h.signup("voter@example.com", "5550001", "NID-000111")
	token := h.login("voter@example.com")

	resp, _ := h.call(http.MethodPost, "/admin/candidates", token, map[string]any{"name": "Mallory", "party": "Red", "age": 40})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.StatusCode)
	}

	_, body := h.call(http.MethodGet, "/admin/candidates", h.admin, nil)
	if n := len(body["candidates"].([]any)); n != 1 {
		t.Fatalf("forbidden request must not create a candidate, have %d", n)
	}

	resp, body = h.call(http.MethodPost, "/admin/login", "", map[string]any{"email": "voter@example.com", "password": "s3cret!"})
	if resp.StatusCode != http.StatusUnauthorized || body["token"] != nil {
		t.Fatalf("voter admin login: expected 401 without token, got %d %v", resp.StatusCode, body)
	}
}

func TestBlockedVoterCannotLogin(t *testing.T) {
	h := newHarness(t)
	id := h.signup("blocked@example.com", "5550002", "NID-000222")

	resp, _ := h.call(http.MethodPost, "/admin/users/"+id+"/block", h.admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("block: expected 200 got %d", resp.StatusCode)
	}

	resp, body := h.call(http.MethodPost, "/api/v1/login", "", map[string]any{"email": "blocked@example.com", "password": "s3cret!"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.StatusCode)
	}
	if body["blocked"] != true || body["token"] != nil {
		t.Fatalf("blocked login must not issue a token: %v", body)
	}
	if cookie := resp.Header.Get(fiber.HeaderSetCookie); cookie != "" {
		t.Fatalf("blocked login set a cookie: %s", cookie)
	}

	resp, _ = h.call(http.MethodPost, "/admin/users/"+id+"/unblock", h.admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unblock: expected 200 got %d", resp.StatusCode)
	}
	h.login("blocked@example.com")
}

func TestProtectedRoutesRequireValidToken(t *testing.T) {
	h := newHarness(t)

	if resp, _ := h.call(http.MethodGet, "/api/v1/profile", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401 got %d", resp.StatusCode)
	}

	expired, _, err := auth.NewTokenService(testSecret, -time.Minute).Issue("voter-1", identity.RoleVoter)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if resp, _ := h.call(http.MethodPost, "/api/v1/vote/anything", expired, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired token: expected 401 got %d", resp.StatusCode)
	}

	forged, _, err := auth.NewTokenService("other-secret", time.Hour).Issue("admin-1", identity.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if resp, _ := h.call(http.MethodGet, "/admin/dashboard", forged, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token: expected 401 got %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp, body := h.call(http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200 got %d", resp.StatusCode)
	}
	if body["status"].(map[string]any)["store"] != config.DriverMemory {
		t.Fatalf("unexpected health body: %v", body)
	}

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(raw, []byte("votewise_http_requests_total")) {
		t.Fatalf("metrics exposition missing request counter: %d", resp.StatusCode)
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler(logging.Discard())})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: connection refused") })
	app.Get("/teapot", func(c *fiber.Ctx) error { return fiber.NewError(http.StatusTeapot, "short and stout") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusInternalServerError || !bytes.Contains(raw, []byte(`"server error"`)) {
		t.Fatalf("expected generic 500, got %d %s", resp.StatusCode, raw)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/teapot", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusTeapot || !bytes.Contains(raw, []byte("short and stout")) {
		t.Fatalf("expected fiber error passthrough, got %d %s", resp.StatusCode, raw)
	}
}
