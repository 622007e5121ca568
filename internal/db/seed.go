package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/security"
	"github.com/google/uuid"
)

type AccountSeeder interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Create(ctx context.Context, a account.Account) error
}

type ApplicationSeeder interface {
	GetByID(ctx context.Context, id string) (application.LoanApplication, error)
	Create(ctx context.Context, app application.LoanApplication) error
}

// DemoPassword is shared by every demo account.
const DemoPassword = "password"

// EnsureAdmin provisions the bootstrap administrator when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no account uses that email yet.
func EnsureAdmin(ctx context.Context, accounts AccountSeeder, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := accounts.GetByEmail(ctx, account.NormalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, account.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	a := account.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        account.NormalizeEmail(email),
		PasswordHash: hash,
		Role:         account.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return accounts.Create(ctx, a)
}

type demoAccount struct {
	id, name, email string
	role            account.Role
	firstLogin      bool
}

var demoAccounts = []demoAccount{
	{"1", "Admin User", "admin@example.com", account.RoleAdmin, false},
	{"2", "Counselor User", "counselor@example.com", account.RoleCounselor, false},
	{"3", "Approver User", "approver@example.com", account.RoleApprover, false},
	{"4", "New User", "new@example.com", account.RoleCounselor, true},
}

type demoApplication struct {
	id     string
	fields application.Fields
	status application.Status
	reason string
	age    time.Duration
}

var demoApplications = []demoApplication{
	{
		id: "1",
		fields: application.Fields{
			StudentName: "Rahul Sharma", FatherName: "Vikram Sharma", MotherName: "Priya Sharma",
			DateOfBirth: "2000-05-15", AadharNumber: "1234-5678-9012", PanCard: "ABCDE1234F", CibilScore: 750,
		},
		status: application.StatusPending,
		age:    72 * time.Hour,
	},
	{
		id: "2",
		fields: application.Fields{
			StudentName: "Ananya Patel", FatherName: "Rajesh Patel", MotherName: "Meera Patel",
			DateOfBirth: "2001-08-22", AadharNumber: "9876-5432-1098", PanCard: "FGHIJ5678K", CibilScore: 820,
		},
		status: application.StatusApproved,
		age:    120 * time.Hour,
	},
	{
		id: "3",
		fields: application.Fields{
			StudentName: "Arjun Singh", FatherName: "Harpreet Singh", MotherName: "Gurpreet Kaur",
			DateOfBirth: "1999-12-03", AadharNumber: "5678-1234-9012", PanCard: "LMNOP9012Q", CibilScore: 580,
		},
		status: application.StatusRejected,
		reason: "Low CIBIL score",
		age:    168 * time.Hour,
	},
}

// SeedDemo loads the fixed demo roster and a few applications filed by
// counselor "2". Existing records are left alone, so it is safe on every boot.
func SeedDemo(ctx context.Context, log *slog.Logger, accounts AccountSeeder, apps ApplicationSeeder) error {
	hash, err := security.HashPassword(DemoPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	for _, d := range demoAccounts {
		if _, err := accounts.GetByID(ctx, d.id); err == nil {
			continue
		} else if !errors.Is(err, account.ErrNotFound) {
			return fmt.Errorf("seed account %s: %w", d.id, err)
		}

		a := account.Account{
			ID:           d.id,
			Name:         d.name,
			Email:        d.email,
			PasswordHash: hash,
			Role:         d.role,
			IsFirstLogin: d.firstLogin,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := accounts.Create(ctx, a); err != nil && !errors.Is(err, account.ErrEmailTaken) {
			return fmt.Errorf("seed account %s: %w", d.id, err)
		}
	}

	for _, d := range demoApplications {
		if _, err := apps.GetByID(ctx, d.id); err == nil {
			continue
		} else if !errors.Is(err, application.ErrNotFound) {
			return fmt.Errorf("seed application %s: %w", d.id, err)
		}

		app := application.New(d.fields, "2", now.Add(-d.age))
		app.ID = d.id
		app.Status = d.status
		if d.reason != "" {
			reason := d.reason
			app.RejectionReason = &reason
		}
		if err := apps.Create(ctx, app); err != nil {
			return fmt.Errorf("seed application %s: %w", d.id, err)
		}
	}

	log.Info("demo data ready", "accounts", len(demoAccounts), "applications", len(demoApplications))
	return nil
}
