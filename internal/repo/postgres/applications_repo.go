package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationColumns = `id, student_name, father_name, mother_name, date_of_birth, aadhar_number, pan_card,
	cibil_score, status, counselor_id, rejection_reason, version, created_at, updated_at`

type ApplicationsRepo struct {
	pool *pgxpool.Pool
	observer
}

func NewApplicationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ApplicationsRepo {
	return &ApplicationsRepo{pool: pool, observer: observer{prom: prom}}
}

func scanApplication(row pgx.Row) (application.LoanApplication, error) {
	var a application.LoanApplication
	err := row.Scan(
		&a.ID, &a.StudentName, &a.FatherName, &a.MotherName, &a.DateOfBirth, &a.AadharNumber, &a.PanCard,
		&a.CibilScore, &a.Status, &a.CounselorID, &a.RejectionReason, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// Create inserts only while counselor_id names a counselor. FOR SHARE holds
// that row until commit, so a concurrent role change or delete waits.
func (r *ApplicationsRepo) Create(ctx context.Context, a application.LoanApplication) error {
	var tag pgconn.CommandTag

	err := r.observe("applications.create", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`INSERT INTO loan_applications (`+applicationColumns+`)
			 SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text,
			        $8::int, $9::text, $10::text, $11::text, $12::int, $13::timestamptz, $14::timestamptz
			 WHERE EXISTS (
			     SELECT 1 FROM accounts WHERE id = $10::text AND role = 'counselor' FOR SHARE
			 )`,
			a.ID, a.StudentName, a.FatherName, a.MotherName, a.DateOfBirth, a.AadharNumber, a.PanCard,
			a.CibilScore, a.Status, a.CounselorID, a.RejectionReason, a.Version, a.CreatedAt, a.UpdatedAt,
		)
		return err
	})

	if isForeignKeyViolation(err) {
		return application.ErrUnknownCounselor
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return application.ErrUnknownCounselor
	}
	return nil
}

func (r *ApplicationsRepo) GetByID(ctx context.Context, id string) (application.LoanApplication, error) {
	var a application.LoanApplication

	err := r.observe("applications.get_by_id", func() error {
		var err error
		a, err = scanApplication(r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM loan_applications WHERE id = $1`, id))
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return application.LoanApplication{}, application.ErrNotFound
	}
	return a, err
}

// Update is a compare-and-set on version. counselor_id is never rewritten.
func (r *ApplicationsRepo) Update(ctx context.Context, a application.LoanApplication, expectedVersion int) error {
	var tag pgconn.CommandTag

	err := r.observe("applications.update", func() error {
		var err error
		tag, err = r.pool.Exec(ctx,
			`UPDATE loan_applications
			 SET student_name = $3, father_name = $4, mother_name = $5, date_of_birth = $6,
			     aadhar_number = $7, pan_card = $8, cibil_score = $9, status = $10,
			     rejection_reason = $11, version = $12, created_at = $13, updated_at = $14
			 WHERE id = $1 AND version = $2`,
			a.ID, expectedVersion,
			a.StudentName, a.FatherName, a.MotherName, a.DateOfBirth,
			a.AadharNumber, a.PanCard, a.CibilScore, a.Status,
			a.RejectionReason, a.Version, a.CreatedAt, a.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// nothing matched: either gone or someone else bumped the version
	var exists bool
	err = r.observe("applications.update.exists", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM loan_applications WHERE id = $1)`, a.ID).Scan(&exists)
	})
	if err != nil {
		return err
	}
	if !exists {
		return application.ErrNotFound
	}
	return application.ErrVersionConflict
}

func buildFilter(f application.ListFilter) (string, []any) {
	var conds []string
	var args []any

	if f.CounselorID != nil {
		args = append(args, *f.CounselorID)
		conds = append(conds, fmt.Sprintf("counselor_id = $%d", len(args)))
	}

	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *ApplicationsRepo) List(ctx context.Context, f application.ListFilter) ([]application.LoanApplication, error) {
	where, args := buildFilter(f)

	query := `SELECT ` + applicationColumns + ` FROM loan_applications` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	out := make([]application.LoanApplication, 0)

	err := r.observe("applications.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanApplication(rows)
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

func (r *ApplicationsRepo) CountByStatus(ctx context.Context, counselorID *string) (map[application.Status]int, error) {
	where, args := buildFilter(application.ListFilter{CounselorID: counselorID})

	out := make(map[application.Status]int)

	err := r.observe("applications.count_by_status", func() error {
		rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM loan_applications`+where+` GROUP BY status`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s application.Status
			var n int
			if err := rows.Scan(&s, &n); err != nil {
				return err
			}
			out[s] = n
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}
