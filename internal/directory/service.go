// Package directory is the admin-managed roster of portal accounts.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/eduloan/internal/actorctx"
	"github.com/geocoder89/eduloan/internal/apperr"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/security"
)

const temporaryPasswordLength = 12

type Store interface {
	Create(ctx context.Context, a account.Account) error
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	// UpdateProfile never touches credentials, so admin edits cannot undo a
	// concurrent password change.
	UpdateProfile(ctx context.Context, a account.Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]account.Account, error)
}

// OwnershipChecker tells whether a counselor still owns applications.
type OwnershipChecker interface {
	HasApplications(ctx context.Context, counselorID string) (bool, error)
}

type SessionRevoker interface {
	RevokeAccount(ctx context.Context, accountID string) error
}

type Config struct {
	Timeout time.Duration
	Now     func() time.Time
}

type Service struct {
	store    Store
	owners   OwnershipChecker
	sessions SessionRevoker
	cfg      Config
	log      *slog.Logger
}

func New(store Store, owners OwnershipChecker, sessions SessionRevoker, cfg Config, log *slog.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, owners: owners, sessions: sessions, cfg: cfg, log: log}
}

// Create provisions an account in the first-login state. When req.Password is
// empty a temporary password is generated; it is returned only here.
func (s *Service) Create(ctx context.Context, req account.CreateAccountRequest) (account.Account, string, error) {
	if err := validateCreate(req); err != nil {
		return account.Account{}, "", err
	}

	password := req.Password
	if password == "" {
		tmp, err := security.TemporaryPassword(temporaryPasswordLength)
		if err != nil {
			return account.Account{}, "", apperr.OperationFailed("generate password", err)
		}
		password = tmp
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return account.Account{}, "", apperr.OperationFailed("hash password", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	acc := account.NewFromCreateRequest(req, hash, s.cfg.Now())

	if err := s.ensureEmailFree(ctx, acc.Email, ""); err != nil {
		return account.Account{}, "", err
	}

	if err := s.store.Create(ctx, acc); err != nil {
		return account.Account{}, "", storeErr("create account", err)
	}

	s.log.InfoContext(ctx, "account created", "account_id", acc.ID, "role", acc.Role, "actor_id", actorID(ctx))

	return acc, password, nil
}

func (s *Service) Update(ctx context.Context, id string, req account.UpdateAccountRequest) (account.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	acc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return account.Account{}, storeErr("load account", err)
	}

	ve := &apperr.ValidationError{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len([]rune(name)) < 2 {
			ve.Add("name", "must be at least 2 characters")
		}
		acc.Name = name
	}

	if req.Email != nil {
		email := account.NormalizeEmail(*req.Email)
		if email == "" || !strings.Contains(email, "@") {
			ve.Add("email", "must be a valid email address")
		}
		acc.Email = email
	}

	if req.Role != nil && *req.Role != acc.Role {
		if !req.Role.IsValid() {
			ve.Add("role", fmt.Sprintf("unknown role %q", *req.Role))
		} else if acc.Role == account.RoleCounselor {
			owns, err := s.owners.HasApplications(ctx, acc.ID)
			if err != nil {
				return account.Account{}, apperr.OperationFailed("check ownership", err)
			}
			if owns {
				ve.Add("role", "counselor still owns applications")
			}
		}
		acc.Role = *req.Role
	}

	if err := ve.OrNil(); err != nil {
		return account.Account{}, err
	}

	if req.Email != nil {
		if err := s.ensureEmailFree(ctx, acc.Email, acc.ID); err != nil {
			return account.Account{}, err
		}
	}

	acc.UpdatedAt = s.cfg.Now()

	if err := s.store.UpdateProfile(ctx, acc); err != nil {
		if errors.Is(err, account.ErrStillReferenced) {
			return account.Account{}, apperr.Validation("role", "counselor still owns applications")
		}
		return account.Account{}, storeErr("update account", err)
	}

	s.log.InfoContext(ctx, "account updated", "account_id", acc.ID, "role", acc.Role, "actor_id", actorID(ctx))

	return acc, nil
}

// Delete removes the account and revokes its sessions. Counselors who still
// own applications are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	acc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return storeErr("load account", err)
	}

	if acc.Role == account.RoleCounselor {
		owns, err := s.owners.HasApplications(ctx, acc.ID)
		if err != nil {
			return apperr.OperationFailed("check ownership", err)
		}
		if owns {
			return apperr.Validation("id", "counselor still owns applications")
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return storeErr("delete account", err)
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeAccount(ctx, id); err != nil {
			s.log.WarnContext(ctx, "session revoke failed", "account_id", id, "err", err)
		}
	}

	s.log.InfoContext(ctx, "account deleted", "account_id", id, "role", acc.Role, "actor_id", actorID(ctx))
	return nil
}

func (s *Service) List(ctx context.Context) ([]account.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	items, err := s.store.List(ctx)
	if err != nil {
		return nil, storeErr("list accounts", err)
	}
	if items == nil {
		items = []account.Account{}
	}
	return items, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (account.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	acc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return account.Account{}, storeErr("get account", err)
	}
	return acc, nil
}

// CountByRole returns the number of accounts per role; every role is present.
func (s *Service) CountByRole(ctx context.Context) (map[account.Role]int, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[account.Role]int, len(account.Roles()))
	for _, r := range account.Roles() {
		out[r] = 0
	}
	for _, a := range items {
		out[a.Role]++
	}
	return out, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.ID != selfID {
			return apperr.Validation("email", "is already in use")
		}
		return nil
	case errors.Is(err, account.ErrNotFound):
		return nil
	default:
		return apperr.OperationFailed("lookup email", err)
	}
}

func validateCreate(req account.CreateAccountRequest) error {
	ve := &apperr.ValidationError{}

	if len([]rune(strings.TrimSpace(req.Name))) < 2 {
		ve.Add("name", "must be at least 2 characters")
	}
	email := account.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		ve.Add("email", "must be a valid email address")
	}
	if !req.Role.IsValid() {
		ve.Add("role", "must be one of admin, counselor, approver")
	}
	if req.Password != "" && len(req.Password) < 8 {
		ve.Add("password", "must be at least 8 characters")
	}
	return ve.OrNil()
}

func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, account.ErrNotFound):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case errors.Is(err, account.ErrEmailTaken):
		return apperr.Validation("email", "is already in use")
	case errors.Is(err, account.ErrStillReferenced):
		return apperr.Validation("id", "counselor still owns applications")
	default:
		return apperr.OperationFailed(op, err)
	}
}

// actorID is the account behind the request, empty outside HTTP.
func actorID(ctx context.Context) string {
	id, _ := actorctx.AccountIDFrom(ctx)
	return id
}
