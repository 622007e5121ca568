// Package registry owns loan applications and drives their lifecycle.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/eduloan/internal/actorctx"
	"github.com/geocoder89/eduloan/internal/apperr"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/application"
)

type Store interface {
	Create(ctx context.Context, app application.LoanApplication) error
	GetByID(ctx context.Context, id string) (application.LoanApplication, error)
	// Update writes app only if the stored version still equals expectedVersion.
	Update(ctx context.Context, app application.LoanApplication, expectedVersion int) error
	// List returns matches ordered by createdAt, newest first.
	List(ctx context.Context, f application.ListFilter) ([]application.LoanApplication, error)
	CountByStatus(ctx context.Context, counselorID *string) (map[application.Status]int, error)
}

type AccountLookup interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// TransitionRecorder observes status changes (metrics).
type TransitionRecorder interface {
	RecordTransition(from, to string)
}

type Config struct {
	Timeout time.Duration
	Now     func() time.Time
}

type Service struct {
	store    Store
	accounts AccountLookup
	cfg      Config
	log      *slog.Logger
	rec      TransitionRecorder
}

func New(store Store, accounts AccountLookup, cfg Config, log *slog.Logger, rec TransitionRecorder) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, accounts: accounts, cfg: cfg, log: log, rec: rec}
}

// ReviewFilter selects reviewed applications: approved, rejected or both.
type ReviewFilter string

const (
	ReviewedAll      ReviewFilter = "all"
	ReviewedApproved ReviewFilter = "approved"
	ReviewedRejected ReviewFilter = "rejected"
)

func (f ReviewFilter) statuses() ([]application.Status, bool) {
	switch f {
	case "", ReviewedAll:
		return []application.Status{application.StatusApproved, application.StatusRejected}, true
	case ReviewedApproved:
		return []application.Status{application.StatusApproved}, true
	case ReviewedRejected:
		return []application.Status{application.StatusRejected}, true
	default:
		return nil, false
	}
}

func (s *Service) Create(ctx context.Context, f application.Fields, counselorID string) (application.LoanApplication, error) {
	f = f.Normalized()
	if err := f.Validate(); err != nil {
		return application.LoanApplication{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.requireCounselor(ctx, counselorID); err != nil {
		return application.LoanApplication{}, err
	}

	app := application.New(f, counselorID, s.cfg.Now())
	if err := s.store.Create(ctx, app); err != nil {
		return application.LoanApplication{}, storeErr("create application", err)
	}

	s.log.InfoContext(ctx, "application created", "application_id", app.ID, "counselor_id", counselorID, "cibil_score", app.CibilScore)
	s.transition("", string(app.Status))

	return app, nil
}

// Update merges patch into the application. Resubmitting a rejected
// application sends it back to pending with a fresh createdAt.
func (s *Service) Update(ctx context.Context, id string, p application.Patch) (application.LoanApplication, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cur, err := s.store.GetByID(ctx, id)
	if err != nil {
		return application.LoanApplication{}, storeErr("load application", err)
	}

	next, err := application.ApplyPatch(cur, p, s.cfg.Now())
	if err != nil {
		return application.LoanApplication{}, err
	}

	if err := next.Fields().Validate(); err != nil {
		return application.LoanApplication{}, err
	}

	if err := s.store.Update(ctx, next, cur.Version); err != nil {
		return application.LoanApplication{}, storeErr("update application", err)
	}

	if cur.Status != next.Status {
		s.log.InfoContext(ctx, "application resubmitted", "application_id", id, "from", cur.Status, "to", next.Status)
		s.transition(string(cur.Status), string(next.Status))
	} else {
		s.log.InfoContext(ctx, "application updated", "application_id", id, "status", next.Status)
	}

	return next, nil
}

func (s *Service) Approve(ctx context.Context, id string) (application.LoanApplication, error) {
	return s.review(ctx, id, func(app application.LoanApplication, now time.Time) (application.LoanApplication, error) {
		return application.Approve(app, now)
	})
}

func (s *Service) Reject(ctx context.Context, id, reason string) (application.LoanApplication, error) {
	return s.review(ctx, id, func(app application.LoanApplication, now time.Time) (application.LoanApplication, error) {
		return application.Reject(app, reason, now)
	})
}

func (s *Service) review(ctx context.Context, id string, step func(application.LoanApplication, time.Time) (application.LoanApplication, error)) (application.LoanApplication, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cur, err := s.store.GetByID(ctx, id)
	if err != nil {
		return application.LoanApplication{}, storeErr("load application", err)
	}

	next, err := step(cur, s.cfg.Now())
	if err != nil {
		return application.LoanApplication{}, err
	}

	if err := s.store.Update(ctx, next, cur.Version); err != nil {
		return application.LoanApplication{}, storeErr("review application", err)
	}

	reviewer, _ := actorctx.AccountIDFrom(ctx)
	s.log.InfoContext(ctx, "application reviewed", "application_id", id, "from", cur.Status, "to", next.Status, "reviewer_id", reviewer)
	s.transition(string(cur.Status), string(next.Status))

	return next, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (application.LoanApplication, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		return application.LoanApplication{}, storeErr("get application", err)
	}
	return app, nil
}

func (s *Service) ListByCounselor(ctx context.Context, counselorID string) ([]application.LoanApplication, error) {
	return s.Recent(ctx, application.ListFilter{CounselorID: &counselorID}, 0)
}

func (s *Service) ListByStatus(ctx context.Context, status application.Status) ([]application.LoanApplication, error) {
	if !status.IsValid() {
		return nil, apperr.Validation("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.Recent(ctx, application.ListFilter{Statuses: []application.Status{status}}, 0)
}

func (s *Service) ListReviewed(ctx context.Context, f ReviewFilter) ([]application.LoanApplication, error) {
	statuses, ok := f.statuses()
	if !ok {
		return nil, apperr.Validation("status", "must be one of approved, rejected, all")
	}
	return s.Recent(ctx, application.ListFilter{Statuses: statuses}, 0)
}

// Recent lists matches newest first; n <= 0 means no limit.
func (s *Service) Recent(ctx context.Context, f application.ListFilter, n int) ([]application.LoanApplication, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if n > 0 {
		f.Limit = n
	}

	apps, err := s.store.List(ctx, f)
	if err != nil {
		return nil, storeErr("list applications", err)
	}
	if apps == nil {
		apps = []application.LoanApplication{}
	}
	return apps, nil
}

// Stats counts applications per status, scoped to counselorID when set.
func (s *Service) Stats(ctx context.Context, counselorID *string) (application.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	counts, err := s.store.CountByStatus(ctx, counselorID)
	if err != nil {
		return application.Stats{}, storeErr("count applications", err)
	}

	var st application.Stats
	for status, n := range counts {
		st.Add(status, n)
	}
	return st, nil
}

// HasApplications reports whether counselorID filed any application.
func (s *Service) HasApplications(ctx context.Context, counselorID string) (bool, error) {
	st, err := s.Stats(ctx, &counselorID)
	if err != nil {
		return false, err
	}
	return st.Total > 0, nil
}

func (s *Service) requireCounselor(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Validation("counselorId", "is required")
	}

	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return apperr.Validation("counselorId", "does not reference an existing account")
		}
		return apperr.OperationFailed("load counselor", err)
	}
	if acc.Role != account.RoleCounselor {
		return apperr.Validation("counselorId", "must reference a counselor")
	}
	return nil
}

func (s *Service) transition(from, to string) {
	if s.rec != nil {
		s.rec.RecordTransition(from, to)
	}
}

func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, application.ErrNotFound):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case errors.Is(err, application.ErrVersionConflict):
		return fmt.Errorf("%s: %w", op, apperr.ErrConflict)
	case errors.Is(err, application.ErrUnknownCounselor):
		return apperr.Validation("counselorId", "must reference a counselor")
	default:
		return apperr.OperationFailed(op, err)
	}
}
