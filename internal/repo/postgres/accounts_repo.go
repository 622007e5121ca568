package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, name, email, password_hash, role, is_first_login, created_at, updated_at`

type AccountsRepo struct {
	pool *pgxpool.Pool
	observer
}

func NewAccountsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AccountsRepo {
	return &AccountsRepo{pool: pool, observer: observer{prom: prom}}
}

func scanAccount(row pgx.Row) (account.Account, error) {
	var a account.Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.IsFirstLogin, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *AccountsRepo) Create(ctx context.Context, a account.Account) error {
	err := r.observe("accounts.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO accounts (`+accountColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			a.ID, a.Name, account.NormalizeEmail(a.Email), a.PasswordHash, a.Role, a.IsFirstLogin, a.CreatedAt, a.UpdatedAt,
		)
		return err
	})

	if isUniqueViolation(err) {
		return account.ErrEmailTaken
	}
	return err
}

func (r *AccountsRepo) GetByID(ctx context.Context, id string) (account.Account, error) {
	var a account.Account

	err := r.observe("accounts.get_by_id", func() error {
		var err error
		a, err = scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	return a, err
}

func (r *AccountsRepo) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	var a account.Account

	err := r.observe("accounts.get_by_email", func() error {
		var err error
		a, err = scanAccount(r.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = $1`,
			account.NormalizeEmail(email),
		))
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	return a, err
}

// UpdateProfile writes name, email and role. A counselor who owns
// applications keeps the counselor role.
func (r *AccountsRepo) UpdateProfile(ctx context.Context, a account.Account) error {
	var tag pgconn.CommandTag

	err := r.observe("accounts.update_profile", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE accounts
			 SET name = $2, email = $3, role = $4, updated_at = $5
			 WHERE id = $1
			   AND (role <> 'counselor' OR role = $4
			        OR NOT EXISTS (SELECT 1 FROM loan_applications WHERE counselor_id = $1))`,
			a.ID, a.Name, account.NormalizeEmail(a.Email), a.Role, a.UpdatedAt,
		)
		return err
	})

	if isUniqueViolation(err) {
		return account.ErrEmailTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, a.ID); err != nil {
			return err
		}
		return account.ErrStillReferenced
	}
	return nil
}

func (r *AccountsRepo) UpdateCredentials(ctx context.Context, id, passwordHash string, firstLogin bool, at time.Time) error {
	var tag pgconn.CommandTag

	err := r.observe("accounts.update_credentials", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE accounts SET password_hash = $2, is_first_login = $3, updated_at = $4 WHERE id = $1`,
			id, passwordHash, firstLogin, at,
		)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (r *AccountsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.observe("accounts.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
		return err
	})

	if isForeignKeyViolation(err) {
		return account.ErrStillReferenced
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (r *AccountsRepo) List(ctx context.Context) ([]account.Account, error) {
	out := make([]account.Account, 0)

	err := r.observe("accounts.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAccount(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}
