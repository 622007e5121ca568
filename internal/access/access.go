// Package access decides whether a session may enter a role area.
package access

import (
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/session"
)

// RoleAny lets every authenticated, password-settled session through.
const RoleAny account.Role = "any"

const (
	LoginPath          = "/login"
	ChangePasswordPath = "/change-password"
)

type Outcome string

const (
	Allow                  Outcome = "allow"
	RedirectLogin          Outcome = "redirect_login"
	RedirectPasswordChange Outcome = "redirect_password_change"
	RedirectToOwnArea      Outcome = "redirect_own_area"
)

type Decision struct {
	Outcome Outcome
	Path    string
}

func (d Decision) Allowed() bool { return d.Outcome == Allow }

// DefaultPathFor is the home area of a role. Every redirect goes through it.
func DefaultPathFor(role account.Role) string {
	switch role {
	case account.RoleAdmin:
		return "/admin-area"
	case account.RoleCounselor:
		return "/counselor-area"
	case account.RoleApprover:
		return "/approver-area"
	default:
		return LoginPath
	}
}

// Authorize applies the gate rules in order; the first match wins.
func Authorize(s *session.Session, required account.Role) Decision {
	if !s.Authenticated() {
		return Decision{Outcome: RedirectLogin, Path: LoginPath}
	}

	if s.Account.IsFirstLogin {
		return Decision{Outcome: RedirectPasswordChange, Path: ChangePasswordPath}
	}

	if required != RoleAny && s.Account.Role != required {
		return Decision{Outcome: RedirectToOwnArea, Path: DefaultPathFor(s.Account.Role)}
	}

	return Decision{Outcome: Allow}
}

// LandingPath is where a session belongs when it has nowhere specific to go.
func LandingPath(s *session.Session) string {
	d := Authorize(s, RoleAny)
	if d.Allowed() {
		return DefaultPathFor(s.Account.Role)
	}
	return d.Path
}
