package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/eduloan/internal/apperr"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/repo/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type recorder struct {
	mu    sync.Mutex
	edges []string
}

func (r *recorder) RecordTransition(from, to string) {
	r.mu.Lock()
	r.edges = append(r.edges, from+">"+to)
	r.mu.Unlock()
}

func ptr[T any](v T) *T { return &v }

func fields(score int) application.Fields {
	return application.Fields{
		StudentName:  "Rahul Sharma",
		FatherName:   "Vikram Sharma",
		MotherName:   "Priya Sharma",
		DateOfBirth:  "2000-05-15",
		AadharNumber: "1234-5678-9012",
		PanCard:      "ABCDE1234F",
		CibilScore:   score,
	}
}

func newService(t *testing.T, store Store) (*Service, *recorder) {
	t.Helper()

	accounts := memory.NewAccountsRepo(0)
	ctx := context.Background()
	for _, a := range []account.Account{
		{ID: "2", Email: "counselor@example.com", Role: account.RoleCounselor},
		{ID: "3", Email: "approver@example.com", Role: account.RoleApprover},
	} {
		if err := accounts.Create(ctx, a); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}

	if store == nil {
		store = memory.NewApplicationsRepo(0, accounts)
	}

	rec := &recorder{}
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New(store, accounts, Config{Timeout: time.Second, Now: c.Now}, discard, rec), rec
}

func TestCreate_RoundTrip(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, fields(750), "2")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != application.StatusPending || created.Version != 1 || created.ID == "" {
		t.Fatalf("unexpected application: %+v", created)
	}

	got, err := svc.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != created {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, created)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name        string
		fields      application.Fields
		counselorID string
		wantField   string
	}{
		{"cibil below range", fields(299), "2", "cibilScore"},
		{"cibil above range", fields(901), "2", "cibilScore"},
		{"unknown counselor", fields(700), "99", "counselorId"},
		{"approver is not a counselor", fields(700), "3", "counselorId"},
		{"missing counselor", fields(700), "", "counselorId"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.fields, tc.counselorID)

			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Fields[0].Field != tc.wantField {
				t.Fatalf("expected field %q, got %+v", tc.wantField, ve.Fields)
			}
		})
	}

	for _, score := range []int{300, 900} {
		if _, err := svc.Create(ctx, fields(score), "2"); err != nil {
			t.Fatalf("cibil %d should be accepted: %v", score, err)
		}
	}
}

func TestLifecycle_RejectResubmitApprove(t *testing.T) {
	svc, rec := newService(t, nil)
	ctx := context.Background()

	app, err := svc.Create(ctx, fields(680), "2")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rejected, err := svc.Reject(ctx, app.ID, "  Low CIBIL score ")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "Low CIBIL score" {
		t.Fatalf("expected trimmed reason, got %v", rejected.RejectionReason)
	}

	if _, err := svc.Approve(ctx, app.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("approve after reject should be InvalidTransition, got %v", err)
	}

	resubmitted, err := svc.Update(ctx, app.ID, application.Patch{
		CibilScore: ptr(720),
		Status:     ptr(application.StatusPending),
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.Status != application.StatusPending || resubmitted.RejectionReason != nil {
		t.Fatalf("resubmission should be pending without reason: %+v", resubmitted)
	}
	if !resubmitted.CreatedAt.After(app.CreatedAt) {
		t.Fatalf("resubmission should refresh createdAt")
	}
	if resubmitted.CounselorID != "2" {
		t.Fatalf("counselor must not change")
	}

	approved, err := svc.Approve(ctx, app.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != application.StatusApproved || approved.CibilScore != 720 {
		t.Fatalf("unexpected approved application: %+v", approved)
	}

	if _, err := svc.Reject(ctx, app.ID, "too late"); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("approved is terminal, got %v", err)
	}
	if _, err := svc.Update(ctx, app.ID, application.Patch{CibilScore: ptr(800)}); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("approved is not editable, got %v", err)
	}

	want := []string{">pending", "pending>rejected", "rejected>pending", "pending>approved"}
	if len(rec.edges) != len(want) {
		t.Fatalf("unexpected transitions: %v", rec.edges)
	}
	for i := range want {
		if rec.edges[i] != want[i] {
			t.Fatalf("transition %d: got %q want %q", i, rec.edges[i], want[i])
		}
	}
}

func TestUpdate_ValidatesMergedFields(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	app, _ := svc.Create(ctx, fields(700), "2")

	if _, err := svc.Update(ctx, app.ID, application.Patch{PanCard: ptr("bad")}); !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	got, _ := svc.GetByID(ctx, app.ID)
	if got.PanCard != "ABCDE1234F" || got.Version != 1 {
		t.Fatalf("failed update must not persist: %+v", got)
	}
}

func TestNotFound(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.GetByID(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	if _, err := svc.Approve(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.Reject(ctx, "missing", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("reject: %v", err)
	}
	if _, err := svc.Update(ctx, "missing", application.Patch{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("update: %v", err)
	}
}

// racingStore bumps the stored version between the read and the write.
type racingStore struct {
	*memory.ApplicationsRepo
	once sync.Once
}

func (s *racingStore) Update(ctx context.Context, app application.LoanApplication, expectedVersion int) error {
	s.once.Do(func() {
		cur, _ := s.ApplicationsRepo.GetByID(ctx, app.ID)
		cur.Version++
		_ = s.ApplicationsRepo.Update(ctx, cur, cur.Version-1)
	})
	return s.ApplicationsRepo.Update(ctx, app, expectedVersion)
}

func TestApprove_ConcurrentWriteIsConflict(t *testing.T) {
	store := &racingStore{ApplicationsRepo: memory.NewApplicationsRepo(0, nil)}
	svc, _ := newService(t, store)
	ctx := context.Background()

	app, _ := svc.Create(ctx, fields(700), "2")

	if _, err := svc.Approve(ctx, app.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

// hookedStore runs before() ahead of the insert, after the service has
// already checked the counselor.
type hookedStore struct {
	*memory.ApplicationsRepo
	before func(ctx context.Context)
}

func (s *hookedStore) Create(ctx context.Context, app application.LoanApplication) error {
	s.before(ctx)
	return s.ApplicationsRepo.Create(ctx, app)
}

func TestCreate_CounselorRemovedMidFlight(t *testing.T) {
	ctx := context.Background()

	accounts := memory.NewAccountsRepo(0)
	if err := accounts.Create(ctx, account.Account{ID: "2", Email: "counselor@example.com", Role: account.RoleCounselor}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	repo := memory.NewApplicationsRepo(0, accounts)
	store := &hookedStore{ApplicationsRepo: repo, before: func(ctx context.Context) {
		if err := accounts.Delete(ctx, "2"); err != nil {
			t.Errorf("delete counselor: %v", err)
		}
	}}
	svc := New(store, accounts, Config{Timeout: time.Second}, discard, nil)

	_, err := svc.Create(ctx, fields(680), "2")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	left, _ := repo.List(ctx, application.ListFilter{CounselorID: ptr("2")})
	if len(left) != 0 {
		t.Fatalf("no application may reference a deleted counselor, got %d", len(left))
	}
}

func TestCreate_FiledApplicationPinsCounselor(t *testing.T) {
	ctx := context.Background()

	accounts := memory.NewAccountsRepo(0)
	if err := accounts.Create(ctx, account.Account{ID: "2", Email: "counselor@example.com", Role: account.RoleCounselor}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := New(memory.NewApplicationsRepo(0, accounts), accounts, Config{Timeout: time.Second}, discard, nil)

	if _, err := svc.Create(ctx, fields(680), "2"); err != nil {
		t.Fatalf("create: %v", err)
	}

	// a delete whose ownership check ran before the insert lands here
	if err := accounts.Delete(ctx, "2"); !errors.Is(err, account.ErrStillReferenced) {
		t.Fatalf("expected ErrStillReferenced, got %v", err)
	}
	if _, err := accounts.GetByID(ctx, "2"); err != nil {
		t.Fatalf("counselor should survive: %v", err)
	}
}

type brokenStore struct{ Store }

func (brokenStore) GetByID(context.Context, string) (application.LoanApplication, error) {
	return application.LoanApplication{}, errors.New("connection refused")
}

func (brokenStore) List(context.Context, application.ListFilter) ([]application.LoanApplication, error) {
	return nil, errors.New("connection refused")
}

func TestBackendFailureIsOperationFailed(t *testing.T) {
	svc, _ := newService(t, brokenStore{})
	ctx := context.Background()

	if _, err := svc.Approve(ctx, "1"); !errors.Is(err, apperr.ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
	if _, err := svc.ListByStatus(ctx, application.StatusPending); !errors.Is(err, apperr.ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
}

func TestTimeoutIsOperationFailed(t *testing.T) {
	accounts := memory.NewAccountsRepo(0)
	_ = accounts.Create(context.Background(), account.Account{ID: "2", Email: "c@example.com", Role: account.RoleCounselor})

	svc := New(memory.NewApplicationsRepo(200*time.Millisecond, accounts), accounts, Config{Timeout: 20 * time.Millisecond}, discard, nil)

	_, err := svc.Create(context.Background(), fields(700), "2")
	if !errors.Is(err, apperr.ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the deadline to stay visible, got %v", err)
	}
}

func TestQueries(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	a, _ := svc.Create(ctx, fields(700), "2")
	b, _ := svc.Create(ctx, fields(600), "2")
	c, _ := svc.Create(ctx, fields(800), "2")
	_, _ = svc.Approve(ctx, a.ID)
	_, _ = svc.Reject(ctx, b.ID, "Low CIBIL score")

	pending, _ := svc.ListByStatus(ctx, application.StatusPending)
	if len(pending) != 1 || pending[0].ID != c.ID {
		t.Fatalf("unexpected pending: %+v", pending)
	}

	reviewed, _ := svc.ListReviewed(ctx, ReviewedAll)
	if len(reviewed) != 2 {
		t.Fatalf("expected 2 reviewed, got %d", len(reviewed))
	}
	approved, _ := svc.ListReviewed(ctx, ReviewedApproved)
	if len(approved) != 1 || approved[0].ID != a.ID {
		t.Fatalf("unexpected approved: %+v", approved)
	}
	if _, err := svc.ListReviewed(ctx, "pending"); !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError for bad filter, got %v", err)
	}

	mine, _ := svc.ListByCounselor(ctx, "2")
	if len(mine) != 3 || mine[0].ID != c.ID {
		t.Fatalf("expected newest first, got %+v", mine)
	}

	recent, _ := svc.Recent(ctx, application.ListFilter{CounselorID: ptr("2")}, 2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent, got %d", len(recent))
	}

	none, err := svc.ListByCounselor(ctx, "nobody")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %v %v", none, err)
	}

	st, _ := svc.Stats(ctx, ptr("2"))
	if st != (application.Stats{Pending: 1, Approved: 1, Rejected: 1, Total: 3}) {
		t.Fatalf("unexpected stats: %+v", st)
	}

	owns, _ := svc.HasApplications(ctx, "2")
	if !owns {
		t.Fatalf("counselor 2 owns applications")
	}
}

func TestVisibility(t *testing.T) {
	app := application.LoanApplication{CounselorID: "2"}

	tests := []struct {
		name    string
		acc     account.Account
		canView bool
		canEdit bool
	}{
		{"owner", account.Account{ID: "2", Role: account.RoleCounselor}, true, true},
		{"other counselor", account.Account{ID: "5", Role: account.RoleCounselor}, false, false},
		{"approver", account.Account{ID: "3", Role: account.RoleApprover}, true, false},
		{"admin", account.Account{ID: "1", Role: account.RoleAdmin}, true, false},
		{"admin with owner id", account.Account{ID: "2", Role: account.RoleAdmin}, true, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanView(tc.acc, app); got != tc.canView {
				t.Fatalf("CanView = %v, want %v", got, tc.canView)
			}
			if got := CanEdit(tc.acc, app); got != tc.canEdit {
				t.Fatalf("CanEdit = %v, want %v", got, tc.canEdit)
			}
		})
	}
}
