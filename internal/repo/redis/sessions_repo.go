// Package redis stores session records in Redis with native key expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/geocoder89/eduloan/internal/domain/session"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "eduloan:session:"
	accountKeyPrefix = "eduloan:account-sessions:"
)

type SessionsRepo struct {
	rdb *goredis.Client
	now func() time.Time
}

func NewSessionsRepo(rdb *goredis.Client) *SessionsRepo {
	return &SessionsRepo{rdb: rdb, now: func() time.Time { return time.Now().UTC() }}
}

func sessionKey(id string) string        { return sessionKeyPrefix + id }
func accountKey(accountID string) string { return accountKeyPrefix + accountID }

// Save writes the record with a TTL matching its expiry and indexes it under
// the owning account so every session of an account can be revoked at once.
func (r *SessionsRepo) Save(ctx context.Context, rec session.Record) error {
	ttl := rec.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(rec.ID), b, ttl)
	pipe.SAdd(ctx, accountKey(rec.AccountID), rec.ID)
	pipe.Expire(ctx, accountKey(rec.AccountID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *SessionsRepo) Get(ctx context.Context, id string) (session.Record, error) {
	b, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, err
	}

	var rec session.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return session.Record{}, err
	}
	return rec, nil
}

func (r *SessionsRepo) Delete(ctx context.Context, id string) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, accountKey(rec.AccountID), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *SessionsRepo) DeleteByAccount(ctx context.Context, accountID string) error {
	ids, err := r.rdb.SMembers(ctx, accountKey(accountID)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, accountKey(accountID))

	return r.rdb.Del(ctx, keys...).Err()
}

// DeleteExpired is a no-op: Redis drops expired keys itself. Stale ids left in
// the account index are harmless and vanish with the index TTL.
func (r *SessionsRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, ctx.Err()
}
