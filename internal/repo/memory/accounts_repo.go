package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/application"
)

// AccountsRepo also keeps the owner index of applications, so the counselor
// reference is checked and claimed under the same lock that guards deletes
// and role changes.
type AccountsRepo struct {
	mu      sync.RWMutex
	items   map[string]account.Account
	byEmail map[string]string // normalized email -> id
	owned   map[string]int    // counselor id -> applications filed
	latency delay
}

func NewAccountsRepo(latency time.Duration) *AccountsRepo {
	return &AccountsRepo{
		items:   make(map[string]account.Account),
		byEmail: make(map[string]string),
		owned:   make(map[string]int),
		latency: delay(latency),
	}
}

func (r *AccountsRepo) Create(ctx context.Context, a account.Account) error {
	if err := r.latency.wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := account.NormalizeEmail(a.Email)
	if _, taken := r.byEmail[email]; taken {
		return account.ErrEmailTaken
	}

	r.items[a.ID] = a
	r.byEmail[email] = a.ID
	return nil
}

func (r *AccountsRepo) GetByID(ctx context.Context, id string) (account.Account, error) {
	if err := r.latency.wait(ctx); err != nil {
		return account.Account{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return a, nil
}

func (r *AccountsRepo) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	if err := r.latency.wait(ctx); err != nil {
		return account.Account{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[account.NormalizeEmail(email)]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return r.items[id], nil
}

// UpdateProfile writes name, email, role and updatedAt. Credentials are
// left alone.
func (r *AccountsRepo) UpdateProfile(ctx context.Context, a account.Account) error {
	if err := r.latency.wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[a.ID]
	if !ok {
		return account.ErrNotFound
	}

	if cur.Role == account.RoleCounselor && a.Role != cur.Role && r.owned[a.ID] > 0 {
		return account.ErrStillReferenced
	}

	oldEmail := account.NormalizeEmail(cur.Email)
	newEmail := account.NormalizeEmail(a.Email)
	if oldEmail != newEmail {
		if owner, taken := r.byEmail[newEmail]; taken && owner != a.ID {
			return account.ErrEmailTaken
		}
		delete(r.byEmail, oldEmail)
		r.byEmail[newEmail] = a.ID
	}

	cur.Name = a.Name
	cur.Email = a.Email
	cur.Role = a.Role
	cur.UpdatedAt = a.UpdatedAt
	r.items[a.ID] = cur
	return nil
}

// UpdateCredentials writes the password hash and first-login flag only.
func (r *AccountsRepo) UpdateCredentials(ctx context.Context, id, passwordHash string, firstLogin bool, at time.Time) error {
	if err := r.latency.wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[id]
	if !ok {
		return account.ErrNotFound
	}

	cur.PasswordHash = passwordHash
	cur.IsFirstLogin = firstLogin
	cur.UpdatedAt = at
	r.items[id] = cur
	return nil
}

// claim records an application filed by counselorID. It fails unless the
// account exists and is a counselor.
func (r *AccountsRepo) claim(counselorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[counselorID]
	if !ok || a.Role != account.RoleCounselor {
		return application.ErrUnknownCounselor
	}
	r.owned[counselorID]++
	return nil
}

func (r *AccountsRepo) Delete(ctx context.Context, id string) error {
	if err := r.latency.wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[id]
	if !ok {
		return account.ErrNotFound
	}
	if r.owned[id] > 0 {
		return account.ErrStillReferenced
	}
	delete(r.byEmail, account.NormalizeEmail(a.Email))
	delete(r.items, id)
	return nil
}

// List returns accounts ordered by creation time, then id.
func (r *AccountsRepo) List(ctx context.Context) ([]account.Account, error) {
	if err := r.latency.wait(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]account.Account, 0, len(r.items))
	for _, a := range r.items {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
