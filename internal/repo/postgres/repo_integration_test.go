package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/eduloan/internal/db"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Runs only against a real database: TEST_DB_DSN=postgres://... go test ./internal/repo/postgres
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	if err := db.Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := db.NewPool(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func newCounselor(t *testing.T, ctx context.Context, repo *AccountsRepo) account.Account {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	a := account.Account{
		ID:           uuid.NewString(),
		Name:         "Counselor",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Role:         account.RoleCounselor,
		IsFirstLogin: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func TestAccountsRepo_EmailUniqueCaseInsensitive(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewAccountsRepo(pool, nil)

	a := newCounselor(t, ctx, repo)

	dup := a
	dup.ID = uuid.NewString()
	dup.Email = "  " + a.Email
	if err := repo.Create(ctx, dup); !errors.Is(err, account.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := repo.GetByEmail(ctx, a.Email)
	if err != nil || got.ID != a.ID {
		t.Fatalf("lookup by email: %v %+v", err, got)
	}

	if err := repo.Delete(ctx, uuid.NewString()); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplicationsRepo_VersionedUpdate(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	accounts := NewAccountsRepo(pool, nil)
	repo := NewApplicationsRepo(pool, nil)

	c := newCounselor(t, ctx, accounts)

	app := application.New(application.Fields{
		StudentName: "Rahul Sharma", FatherName: "Vikram Sharma", MotherName: "Priya Sharma",
		DateOfBirth: "2000-05-15", AadharNumber: "1234-5678-9012", PanCard: "ABCDE1234F", CibilScore: 680,
	}, c.ID, time.Now().UTC().Truncate(time.Microsecond))

	if err := repo.Create(ctx, app); err != nil {
		t.Fatalf("create: %v", err)
	}

	rejected, err := application.Reject(app, "Low CIBIL score", time.Now().UTC())
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := repo.Update(ctx, rejected, app.Version); err != nil {
		t.Fatalf("update: %v", err)
	}

	// stale writer
	if err := repo.Update(ctx, rejected, app.Version); !errors.Is(err, application.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, err := repo.GetByID(ctx, app.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != application.StatusRejected || got.RejectionReason == nil || *got.RejectionReason != "Low CIBIL score" {
		t.Fatalf("unexpected row: %+v", got)
	}

	list, err := repo.List(ctx, application.ListFilter{CounselorID: &c.ID, Statuses: []application.Status{application.StatusRejected}})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}

	counts, err := repo.CountByStatus(ctx, &c.ID)
	if err != nil || counts[application.StatusRejected] != 1 {
		t.Fatalf("counts: %v %v", err, counts)
	}
}

func TestCounselorReference(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	accounts := NewAccountsRepo(pool, nil)
	repo := NewApplicationsRepo(pool, nil)

	fields := application.Fields{
		StudentName: "Rahul Sharma", FatherName: "Vikram Sharma", MotherName: "Priya Sharma",
		DateOfBirth: "2000-05-15", AadharNumber: "1234-5678-9012", PanCard: "ABCDE1234F", CibilScore: 680,
	}
	now := time.Now().UTC().Truncate(time.Microsecond)

	// filing for a missing counselor fails before any row exists
	if err := repo.Create(ctx, application.New(fields, uuid.NewString(), now)); !errors.Is(err, application.ErrUnknownCounselor) {
		t.Fatalf("expected ErrUnknownCounselor, got %v", err)
	}

	c := newCounselor(t, ctx, accounts)
	if err := repo.Create(ctx, application.New(fields, c.ID, now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := accounts.Delete(ctx, c.ID); !errors.Is(err, account.ErrStillReferenced) {
		t.Fatalf("delete: expected ErrStillReferenced, got %v", err)
	}

	c.Role = account.RoleApprover
	if err := accounts.UpdateProfile(ctx, c); !errors.Is(err, account.ErrStillReferenced) {
		t.Fatalf("role change: expected ErrStillReferenced, got %v", err)
	}
}

func TestAccountsRepo_ProfileAndCredentialsAreSeparate(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewAccountsRepo(pool, nil)

	a := newCounselor(t, ctx, repo)
	stale := a

	if err := repo.UpdateCredentials(ctx, a.ID, "new-hash", false, time.Now().UTC()); err != nil {
		t.Fatalf("credentials: %v", err)
	}

	stale.Name = "Renamed"
	if err := repo.UpdateProfile(ctx, stale); err != nil {
		t.Fatalf("profile: %v", err)
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Renamed" || got.PasswordHash != "new-hash" || got.IsFirstLogin {
		t.Fatalf("unexpected row: %+v", got)
	}
}
