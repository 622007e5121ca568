package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/eduloan/internal/apperr"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusRejected: {StatusPending},
	StatusApproved: {},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
// Approved is terminal; rejected may only go back to pending.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyPatch merges p into app. Moving a rejected application back to pending
// restarts the review clock and clears the rejection reason; a pending one
// keeps its place in the queue.
func ApplyPatch(app LoanApplication, p Patch, now time.Time) (LoanApplication, error) {
	if app.Status == StatusApproved {
		return app, fmt.Errorf("application %s is approved and can no longer be edited: %w", app.ID, apperr.ErrInvalidTransition)
	}

	if p.Status != nil {
		if *p.Status != StatusPending {
			return app, fmt.Errorf("status %q can only be set by a reviewer: %w", *p.Status, apperr.ErrInvalidTransition)
		}
		if app.Status != StatusPending && !CanTransition(app.Status, StatusPending) {
			return app, fmt.Errorf("cannot move %s application back to pending: %w", app.Status, apperr.ErrInvalidTransition)
		}
	}

	next := app
	if p.StudentName != nil {
		next.StudentName = strings.TrimSpace(*p.StudentName)
	}
	if p.FatherName != nil {
		next.FatherName = strings.TrimSpace(*p.FatherName)
	}
	if p.MotherName != nil {
		next.MotherName = strings.TrimSpace(*p.MotherName)
	}
	if p.DateOfBirth != nil {
		next.DateOfBirth = strings.TrimSpace(*p.DateOfBirth)
	}
	if p.AadharNumber != nil {
		next.AadharNumber = strings.TrimSpace(*p.AadharNumber)
	}
	if p.PanCard != nil {
		next.PanCard = strings.TrimSpace(*p.PanCard)
	}
	if p.CibilScore != nil {
		next.CibilScore = *p.CibilScore
	}

	if p.Status != nil && app.Status == StatusRejected {
		next.Status = StatusPending
		next.CreatedAt = now
		next.RejectionReason = nil
	}

	next.UpdatedAt = now
	next.Version = app.Version + 1

	return next, nil
}

func Approve(app LoanApplication, now time.Time) (LoanApplication, error) {
	if !CanTransition(app.Status, StatusApproved) {
		return app, fmt.Errorf("cannot approve %s application %s: %w", app.Status, app.ID, apperr.ErrInvalidTransition)
	}

	next := app
	next.Status = StatusApproved
	next.RejectionReason = nil
	next.UpdatedAt = now
	next.Version = app.Version + 1
	return next, nil
}

func Reject(app LoanApplication, reason string, now time.Time) (LoanApplication, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return app, apperr.Validation("reason", "Please provide a reason for rejection")
	}
	if !CanTransition(app.Status, StatusRejected) {
		return app, fmt.Errorf("cannot reject %s application %s: %w", app.Status, app.ID, apperr.ErrInvalidTransition)
	}

	next := app
	next.Status = StatusRejected
	next.RejectionReason = &reason
	next.UpdatedAt = now
	next.Version = app.Version + 1
	return next, nil
}
