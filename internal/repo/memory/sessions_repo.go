package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/eduloan/internal/domain/session"
)

type SessionsRepo struct {
	mu    sync.RWMutex
	items map[string]session.Record
}

func NewSessionsRepo() *SessionsRepo {
	return &SessionsRepo{items: make(map[string]session.Record)}
}

func (r *SessionsRepo) Save(ctx context.Context, rec session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.items[rec.ID] = rec
	r.mu.Unlock()
	return nil
}

func (r *SessionsRepo) Get(ctx context.Context, id string) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.items[id]
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return rec, nil
}

func (r *SessionsRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return session.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *SessionsRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.items {
		if rec.AccountID == accountID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *SessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, rec := range r.items {
		if rec.Expired(now) {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

func (r *SessionsRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
