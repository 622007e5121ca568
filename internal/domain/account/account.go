package account

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCounselor Role = "counselor"
	RoleApprover  Role = "approver"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleCounselor, RoleApprover:
		return true
	default:
		return false
	}
}

// Roles lists every provisionable role in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleCounselor, RoleApprover}
}

type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Role         Role      `json:"role"`
	IsFirstLogin bool      `json:"isFirstLogin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var (
	ErrNotFound   = errors.New("account not found")
	ErrEmailTaken = errors.New("email is already in use")
	// ErrStillReferenced: the counselor owns applications, so it can be
	// neither deleted nor moved to another role.
	ErrStillReferenced = errors.New("account still owns applications")
)

type CreateAccountRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Role     Role   `json:"role" binding:"required,oneof=admin counselor approver"`
	Password string `json:"password" binding:"omitempty,min=8,max=72"`
}

// nil fields are left untouched
type UpdateAccountRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=120"`
	Email *string `json:"email" binding:"omitempty,email"`
	Role  *Role   `json:"role" binding:"omitempty,oneof=admin counselor approver"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewFromCreateRequest builds a freshly provisioned account. Every new account
// starts in the first-login state.
func NewFromCreateRequest(req CreateAccountRequest, passwordHash string, now time.Time) Account {
	return Account{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        NormalizeEmail(req.Email),
		PasswordHash: passwordHash,
		Role:         req.Role,
		IsFirstLogin: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
