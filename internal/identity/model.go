package identity

import (
	"fmt"
	"time"
)

// Role is the closed set of authorization roles.
type Role string

const (
	RoleVoter Role = "voter"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVoter, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User represents a registered account. PasswordHash is only populated on
// the credential lookup path.
type User struct {
	ID           string
	Name         string
	Age          int
	Email        string
	Mobile       string
	NationalID   string
	Address      string
	PasswordHash []byte
	Role         Role
	IsBlocked    bool
	IsVoted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NationalIDLast4 returns the last four characters of the national ID.
func (u User) NationalIDLast4() string {
	if len(u.NationalID) <= 4 {
		return u.NationalID
	}
	return u.NationalID[len(u.NationalID)-4:]
}

// SignupInput carries the fields a voter submits on signup.
type SignupInput struct {
	Name       string `json:"name" form:"name" validate:"required"`
	Age        int    `json:"age" form:"age" validate:"required,gte=1"`
	Email      string `json:"email" form:"email" validate:"required,email"`
	Mobile     string `json:"mobile" form:"mobile" validate:"required"`
	Password   string `json:"password" form:"password" validate:"required"`
	NationalID string `json:"national_id" form:"national_id" validate:"required"`
	Address    string `json:"address" form:"address" validate:"required"`
}

// Credentials are the login inputs.
type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// ProfileUpdate lists the user-editable fields. Nil fields are left as-is.
type ProfileUpdate struct {
	Name    *string
	Age     *int
	Mobile  *string
	Address *string
}

// Empty reports whether no field is set.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Age == nil && p.Mobile == nil && p.Address == nil
}

// Apply copies the set fields onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Age != nil {
		u.Age = *p.Age
	}
	if p.Mobile != nil {
		u.Mobile = *p.Mobile
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
}
