// Package identity owns login, logout, password change and session lookup.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/eduloan/internal/apperr"
	"github.com/geocoder89/eduloan/internal/auth"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/session"
	"github.com/geocoder89/eduloan/internal/security"
	"github.com/google/uuid"
)

const minPasswordLength = 8

type AccountStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	UpdateCredentials(ctx context.Context, id, passwordHash string, firstLogin bool, at time.Time) error
}

type SessionStore interface {
	Save(ctx context.Context, rec session.Record) error
	Get(ctx context.Context, id string) (session.Record, error)
	Delete(ctx context.Context, id string) error
	DeleteByAccount(ctx context.Context, accountID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type TokenIssuer interface {
	IssueSessionToken(sessionID, accountID, role string, expiresAt time.Time) (string, error)
	VerifySessionToken(token string) (*auth.Claims, error)
	HashToken(raw string) string
}

// LoginRecorder observes login outcomes (metrics).
type LoginRecorder interface {
	RecordLogin(result string)
}

type Config struct {
	SessionTTL time.Duration
	Timeout    time.Duration
	Now        func() time.Time
}

type Service struct {
	accounts AccountStore
	sessions SessionStore
	tokens   TokenIssuer
	cfg      Config
	log      *slog.Logger
	rec      LoginRecorder
}

func New(accounts AccountStore, sessions SessionStore, tokens TokenIssuer, cfg Config, log *slog.Logger, rec LoginRecorder) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		accounts: accounts,
		sessions: sessions,
		tokens:   tokens,
		cfg:      cfg,
		log:      log,
		rec:      rec,
	}
}

// Login authenticates by email and password. Unknown email and wrong password
// both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	acc, err := s.accounts.GetByEmail(ctx, account.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			// burn the same bcrypt work as a real comparison
			_ = security.CheckPassword(dummyHash, password)
			s.record("invalid_credentials")
			return nil, apperr.ErrInvalidCredentials
		}
		s.record("error")
		return nil, apperr.OperationFailed("login", err)
	}

	if err := security.CheckPassword(acc.PasswordHash, password); err != nil {
		s.record("invalid_credentials")
		return nil, apperr.ErrInvalidCredentials
	}

	now := s.cfg.Now()
	sess := &session.Session{
		ID:              uuid.NewString(),
		Account:         acc,
		IsAuthenticated: true,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.SessionTTL),
	}

	token, err := s.tokens.IssueSessionToken(sess.ID, acc.ID, string(acc.Role), sess.ExpiresAt)
	if err != nil {
		s.record("error")
		return nil, apperr.OperationFailed("issue session token", err)
	}
	sess.Token = token

	rec := session.Record{
		ID:            sess.ID,
		AccountID:     acc.ID,
		TokenHash:     s.tokens.HashToken(token),
		Authenticated: true,
		CreatedAt:     sess.CreatedAt,
		ExpiresAt:     sess.ExpiresAt,
	}
	if err := s.sessions.Save(ctx, rec); err != nil {
		s.record("error")
		return nil, apperr.OperationFailed("save session", err)
	}

	s.record("success")
	s.log.InfoContext(ctx, "login", "account_id", acc.ID, "role", acc.Role, "first_login", acc.IsFirstLogin, "session_id", sess.ID)

	return sess, nil
}

// Logout drops the session behind token. Unknown or malformed tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}

	claims, err := s.tokens.VerifySessionToken(token)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.sessions.Delete(ctx, claims.JTI); err != nil && !errors.Is(err, session.ErrNotFound) {
		s.log.WarnContext(ctx, "logout: session delete failed", "session_id", claims.JTI, "err", err)
		return
	}

	s.log.InfoContext(ctx, "logout", "session_id", claims.JTI, "account_id", claims.AccountID)
}

// Session resolves a bearer token, refreshing the account snapshot.
func (s *Service) Session(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}

	claims, err := s.tokens.VerifySessionToken(token)
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	rec, err := s.sessions.Get(ctx, claims.JTI)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, apperr.OperationFailed("load session", err)
	}

	if !rec.Authenticated || rec.Expired(s.cfg.Now()) || rec.TokenHash != s.tokens.HashToken(token) {
		return nil, apperr.ErrUnauthenticated
	}

	acc, err := s.accounts.GetByID(ctx, rec.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, apperr.OperationFailed("load session account", err)
	}

	return &session.Session{
		ID:              rec.ID,
		Account:         acc,
		Token:           token,
		IsAuthenticated: true,
		CreatedAt:       rec.CreatedAt,
		ExpiresAt:       rec.ExpiresAt,
	}, nil
}

// ChangePassword verifies the current password, stores the new one and leaves
// the first-login state. The returned session carries the updated account.
func (s *Service) ChangePassword(ctx context.Context, sess *session.Session, current, next string) (*session.Session, error) {
	if !sess.Authenticated() {
		return nil, apperr.ErrUnauthenticated
	}

	if len(next) < minPasswordLength {
		return nil, apperr.Validation("newPassword", fmt.Sprintf("New password must be at least %d characters", minPasswordLength))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	acc, err := s.accounts.GetByID(ctx, sess.Account.ID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, apperr.OperationFailed("load account", err)
	}

	if err := security.CheckPassword(acc.PasswordHash, current); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	hash, err := security.HashPassword(next)
	if err != nil {
		return nil, apperr.OperationFailed("hash password", err)
	}

	acc.PasswordHash = hash
	acc.IsFirstLogin = false
	acc.UpdatedAt = s.cfg.Now()

	if err := s.accounts.UpdateCredentials(ctx, acc.ID, hash, false, acc.UpdatedAt); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, apperr.OperationFailed("store password", err)
	}

	s.log.InfoContext(ctx, "password changed", "account_id", acc.ID, "session_id", sess.ID)

	updated := *sess
	updated.Account = acc
	return &updated, nil
}

// RevokeAccount drops every session belonging to accountID.
func (s *Service) RevokeAccount(ctx context.Context, accountID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.sessions.DeleteByAccount(ctx, accountID); err != nil {
		return apperr.OperationFailed("revoke sessions", err)
	}
	return nil
}

// SweepExpired removes expired session records and reports how many went away.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	n, err := s.sessions.DeleteExpired(ctx, s.cfg.Now())
	if err != nil {
		return 0, apperr.OperationFailed("sweep sessions", err)
	}
	return n, nil
}

func (s *Service) record(result string) {
	if s.rec != nil {
		s.rec.RecordLogin(result)
	}
}

// dummyHash is compared against on unknown emails so the miss costs a full
// bcrypt round.
var dummyHash = mustHash(uuid.NewString())

func mustHash(plain string) string {
	h, err := security.HashPassword(plain)
	if err != nil {
		panic(fmt.Sprintf("identity: hash dummy credential: %v", err))
	}
	return h
}
