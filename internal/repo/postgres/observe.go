package postgres

import (
	"errors"

	"github.com/geocoder89/eduloan/internal/observability"
	"github.com/jackc/pgx/v5/pgconn"
)

type observer struct {
	prom *observability.Prom
}

func (o observer) observe(op string, fn func() error) error {
	if o.prom != nil {
		return o.prom.ObserveDB(op, fn)
	}
	return fn()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
