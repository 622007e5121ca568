package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/eduloan/internal/domain/application"
)

type ApplicationsRepo struct {
	mu      sync.RWMutex
	items   map[string]application.LoanApplication
	owners  *AccountsRepo
	latency delay
}

// NewApplicationsRepo stores applications. With owners set, Create refuses
// counselor ids that owners does not hold as counselors.
func NewApplicationsRepo(latency time.Duration, owners *AccountsRepo) *ApplicationsRepo {
	return &ApplicationsRepo{
		items:   make(map[string]application.LoanApplication),
		owners:  owners,
		latency: delay(latency),
	}
}

func (r *ApplicationsRepo) Create(ctx context.Context, app application.LoanApplication) error {
	if err := r.latency.wait(ctx); err != nil {
		return err
	}

	if r.owners != nil {
		if err := r.owners.claim(app.CounselorID); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.items[app.ID] = clone(app)
	r.mu.Unlock()
	return nil
}

func (r *ApplicationsRepo) GetByID(ctx context.Context, id string) (application.LoanApplication, error) {
	if err := r.latency.wait(ctx); err != nil {
		return application.LoanApplication{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.items[id]
	if !ok {
		return application.LoanApplication{}, application.ErrNotFound
	}
	return clone(app), nil
}

func (r *ApplicationsRepo) Update(ctx context.Context, app application.LoanApplication, expectedVersion int) error {
	if err := r.latency.wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[app.ID]
	if !ok {
		return application.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return application.ErrVersionConflict
	}

	r.items[app.ID] = clone(app)
	return nil
}

func (r *ApplicationsRepo) List(ctx context.Context, f application.ListFilter) ([]application.LoanApplication, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]application.LoanApplication, 0, len(r.items))
	for _, app := range r.items {
		if f.CounselorID != nil && app.CounselorID != *f.CounselorID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, app.Status) {
			continue
		}
		out = append(out, clone(app))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *ApplicationsRepo) CountByStatus(ctx context.Context, counselorID *string) (map[application.Status]int, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[application.Status]int)
	for _, app := range r.items {
		if counselorID != nil && app.CounselorID != *counselorID {
			continue
		}
		out[app.Status]++
	}
	return out, nil
}

// clone detaches the rejection reason pointer from the stored copy.
func clone(app application.LoanApplication) application.LoanApplication {
	if app.RejectionReason != nil {
		r := *app.RejectionReason
		app.RejectionReason = &r
	}
	return app
}
