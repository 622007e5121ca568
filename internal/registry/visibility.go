package registry

import (
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/application"
)

// CanView: counselors see only what they filed; approvers and admins see everything.
func CanView(acc account.Account, app application.LoanApplication) bool {
	switch acc.Role {
	case account.RoleApprover, account.RoleAdmin:
		return true
	case account.RoleCounselor:
		return app.CounselorID == acc.ID
	default:
		return false
	}
}

// CanEdit is reserved to the owning counselor.
func CanEdit(acc account.Account, app application.LoanApplication) bool {
	return acc.Role == account.RoleCounselor && app.CounselorID == acc.ID
}
