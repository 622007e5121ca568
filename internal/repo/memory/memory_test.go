package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/domain/session"
)

func TestAccountsRepo_EmailIndex(t *testing.T) {
	ctx := context.Background()
	r := NewAccountsRepo(0)

	a := account.Account{ID: "a", Email: "Jane@Example.com", Role: account.RoleCounselor}
	b := account.Account{ID: "b", Email: "bob@example.com", Role: account.RoleApprover}

	if err := r.Create(ctx, a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := r.Create(ctx, b); err != nil {
		t.Fatalf("create b: %v", err)
	}
	if err := r.Create(ctx, account.Account{ID: "c", Email: "jane@example.com "}); !errors.Is(err, account.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := r.GetByEmail(ctx, "JANE@example.com")
	if err != nil || got.ID != "a" {
		t.Fatalf("lookup: %v %+v", err, got)
	}

	b.Email = "jane@example.com"
	if err := r.UpdateProfile(ctx, b); !errors.Is(err, account.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken on update, got %v", err)
	}

	a.Email = "jane.doe@example.com"
	if err := r.UpdateProfile(ctx, a); err != nil {
		t.Fatalf("rename email: %v", err)
	}
	if _, err := r.GetByEmail(ctx, "jane@example.com"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("old email should be released, got %v", err)
	}

	if err := r.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.Delete(ctx, "a"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountsRepo_ProfileKeepsCredentials(t *testing.T) {
	ctx := context.Background()
	r := NewAccountsRepo(0)

	a := account.Account{ID: "4", Name: "New User", Email: "new@example.com", Role: account.RoleCounselor, PasswordHash: "old", IsFirstLogin: true}
	if err := r.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	// an admin edit built from a read taken before the password change
	stale := a
	stale.Name = "Renamed"

	if err := r.UpdateCredentials(ctx, a.ID, "new", false, time.Now()); err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if err := r.UpdateProfile(ctx, stale); err != nil {
		t.Fatalf("profile: %v", err)
	}

	got, _ := r.GetByID(ctx, a.ID)
	if got.Name != "Renamed" || got.PasswordHash != "new" || got.IsFirstLogin {
		t.Fatalf("unexpected account: %+v", got)
	}

	if err := r.UpdateCredentials(ctx, "missing", "x", false, time.Now()); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCounselorReference(t *testing.T) {
	ctx := context.Background()

	newRepos := func(t *testing.T) (*AccountsRepo, *ApplicationsRepo) {
		t.Helper()
		accounts := NewAccountsRepo(0)
		for _, a := range []account.Account{
			{ID: "2", Email: "counselor@example.com", Role: account.RoleCounselor},
			{ID: "3", Email: "approver@example.com", Role: account.RoleApprover},
		} {
			if err := accounts.Create(ctx, a); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
		return accounts, NewApplicationsRepo(0, accounts)
	}

	t.Run("filed first, then delete and role change refused", func(t *testing.T) {
		accounts, apps := newRepos(t)

		if err := apps.Create(ctx, application.LoanApplication{ID: "a1", CounselorID: "2"}); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := accounts.Delete(ctx, "2"); !errors.Is(err, account.ErrStillReferenced) {
			t.Fatalf("delete: expected ErrStillReferenced, got %v", err)
		}

		c, _ := accounts.GetByID(ctx, "2")
		c.Role = account.RoleApprover
		if err := accounts.UpdateProfile(ctx, c); !errors.Is(err, account.ErrStillReferenced) {
			t.Fatalf("role change: expected ErrStillReferenced, got %v", err)
		}

		c.Role = account.RoleCounselor
		c.Name = "Still Counselor"
		if err := accounts.UpdateProfile(ctx, c); err != nil {
			t.Fatalf("rename: %v", err)
		}
	})

	t.Run("deleted first, then filing refused", func(t *testing.T) {
		accounts, apps := newRepos(t)

		if err := accounts.Delete(ctx, "2"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := apps.Create(ctx, application.LoanApplication{ID: "a1", CounselorID: "2"}); !errors.Is(err, application.ErrUnknownCounselor) {
			t.Fatalf("expected ErrUnknownCounselor, got %v", err)
		}
		if _, err := apps.GetByID(ctx, "a1"); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("nothing should be stored, got %v", err)
		}
	})

	t.Run("non-counselor owner refused", func(t *testing.T) {
		_, apps := newRepos(t)

		if err := apps.Create(ctx, application.LoanApplication{ID: "a1", CounselorID: "3"}); !errors.Is(err, application.ErrUnknownCounselor) {
			t.Fatalf("expected ErrUnknownCounselor, got %v", err)
		}
	})
}

func TestApplicationsRepo_ListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	r := NewApplicationsRepo(0, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []application.LoanApplication{
		{ID: "1", CounselorID: "2", Status: application.StatusPending, CreatedAt: base, Version: 1},
		{ID: "2", CounselorID: "2", Status: application.StatusApproved, CreatedAt: base.Add(time.Hour), Version: 1},
		{ID: "3", CounselorID: "9", Status: application.StatusPending, CreatedAt: base.Add(2 * time.Hour), Version: 1},
	}
	for _, a := range seed {
		if err := r.Create(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, _ := r.List(ctx, application.ListFilter{})
	if len(all) != 3 || all[0].ID != "3" || all[2].ID != "1" {
		t.Fatalf("expected newest first, got %v", ids(all))
	}

	c := "2"
	mine, _ := r.List(ctx, application.ListFilter{CounselorID: &c})
	if len(mine) != 2 || mine[0].ID != "2" {
		t.Fatalf("unexpected counselor list: %v", ids(mine))
	}

	pending, _ := r.List(ctx, application.ListFilter{Statuses: []application.Status{application.StatusPending}, Limit: 1})
	if len(pending) != 1 || pending[0].ID != "3" {
		t.Fatalf("unexpected pending list: %v", ids(pending))
	}

	counts, _ := r.CountByStatus(ctx, &c)
	if counts[application.StatusPending] != 1 || counts[application.StatusApproved] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestApplicationsRepo_VersionCheck(t *testing.T) {
	ctx := context.Background()
	r := NewApplicationsRepo(0, nil)

	app := application.LoanApplication{ID: "1", Status: application.StatusPending, Version: 1}
	_ = r.Create(ctx, app)

	next := app
	next.Version = 2
	if err := r.Update(ctx, next, 1); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := r.Update(ctx, next, 1); !errors.Is(err, application.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := r.Update(ctx, application.LoanApplication{ID: "nope"}, 1); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplicationsRepo_StoredCopyIsDetached(t *testing.T) {
	ctx := context.Background()
	r := NewApplicationsRepo(0, nil)

	reason := "Low CIBIL score"
	_ = r.Create(ctx, application.LoanApplication{ID: "1", Status: application.StatusRejected, RejectionReason: &reason})
	reason = "changed"

	got, _ := r.GetByID(ctx, "1")
	if *got.RejectionReason != "Low CIBIL score" {
		t.Fatalf("stored reason leaked caller mutation: %q", *got.RejectionReason)
	}
}

func TestLatency_HonorsDeadline(t *testing.T) {
	r := NewApplicationsRepo(time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.GetByID(ctx, "1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSessionsRepo(t *testing.T) {
	ctx := context.Background()
	r := NewSessionsRepo()
	now := time.Now()

	_ = r.Save(ctx, session.Record{ID: "s1", AccountID: "a", ExpiresAt: now.Add(time.Hour)})
	_ = r.Save(ctx, session.Record{ID: "s2", AccountID: "a", ExpiresAt: now.Add(-time.Second)})
	_ = r.Save(ctx, session.Record{ID: "s3", AccountID: "b", ExpiresAt: now.Add(time.Hour)})

	n, err := r.DeleteExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("expected one expired session swept, got %d %v", n, err)
	}

	if err := r.DeleteByAccount(ctx, "a"); err != nil {
		t.Fatalf("delete by account: %v", err)
	}
	if _, err := r.Get(ctx, "s1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected s1 revoked, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected only s3 left, got %d", r.Len())
	}
	if err := r.Delete(ctx, "missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func ids(apps []application.LoanApplication) []string {
	out := make([]string, 0, len(apps))
	for _, a := range apps {
		out = append(out, a.ID)
	}
	return out
}
