package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/votewise/votewise/internal/validation"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// ProfileView is the public rendering of a user. The national ID is reduced
// to its last four characters and the password hash never leaves the store.
type ProfileView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Age             int       `json:"age"`
	Email           string    `json:"email"`
	Mobile          string    `json:"mobile"`
	Address         string    `json:"address"`
	NationalIDLast4 string    `json:"national_id_last4"`
	Role            string    `json:"role"`
	IsBlocked       bool      `json:"is_blocked"`
	IsVoted         bool      `json:"is_voted"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewProfileView renders u for API responses.
func NewProfileView(u User) ProfileView {
	return ProfileView{
		ID:              u.ID,
		Name:            u.Name,
		Age:             u.Age,
		Email:           u.Email,
		Mobile:          u.Mobile,
		Address:         u.Address,
		NationalIDLast4: u.NationalIDLast4(),
		Role:            string(u.Role),
		IsBlocked:       u.IsBlocked,
		IsVoted:         u.IsVoted,
		CreatedAt:       u.CreatedAt,
	}
}

// ProfileUpdateRequest is the body accepted by the profile update route.
type ProfileUpdateRequest struct {
	Name    *string `json:"name" form:"name"`
	Age     *int    `json:"age" form:"age"`
	Mobile  *string `json:"mobile" form:"mobile"`
	Address *string `json:"address" form:"address"`
}

// ToUpdate converts the request into a ProfileUpdate.
func (r ProfileUpdateRequest) ToUpdate() ProfileUpdate {
	return ProfileUpdate{Name: r.Name, Age: r.Age, Mobile: r.Mobile, Address: r.Address}
}

// Signup registers a voter.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req SignupInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.service.Register(c.UserContext(), req)
	if err != nil {
		return Error(err)
	}
	if h.logger != nil {
		h.logger.InfoContext(c.UserContext(), "identity.signup completed",
			slog.String("user_id", user.ID),
			slog.Int("status", http.StatusCreated),
		)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"user":     NewProfileView(user),
		"redirect": "/api/v1/login-page",
	})
}

// ListUsers returns every account for the admin console.
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	views := make([]ProfileView, 0, len(users))
	for _, u := range users {
		views = append(views, NewProfileView(u))
	}
	return c.JSON(fiber.Map{"users": views})
}

// Block marks an account as blocked.
func (h *Handler) Block(c *fiber.Ctx) error {
	return h.setBlocked(c, true)
}

// Unblock clears the blocked flag.
func (h *Handler) Unblock(c *fiber.Ctx) error {
	return h.setBlocked(c, false)
}

func (h *Handler) setBlocked(c *fiber.Ctx, blocked bool) error {
	id := c.Params("id")
	if err := h.service.SetBlocked(c.UserContext(), id, blocked); err != nil {
		return Error(err)
	}
	if h.logger != nil {
		h.logger.InfoContext(c.UserContext(), "identity.block updated",
			slog.String("user_id", id),
			slog.Bool("blocked", blocked),
		)
	}
	return c.JSON(fiber.Map{"id": id, "is_blocked": blocked})
}

// Error maps identity errors onto HTTP errors. Unknown errors pass through
// to the server error handler.
func Error(err error) error {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateRegistration), errors.Is(err, ErrAlreadyVoted):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrBlocked):
		return fiber.NewError(http.StatusForbidden, err.Error())
	default:
		return err
	}
}
