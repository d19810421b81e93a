package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Sentinel errors returned for constraint violations reported by PostgreSQL.
var (
	ErrDuplicate    = errors.New("duplicate record")
	ErrReferenced   = errors.New("record is referenced by other rows")
	ErrCheckFailed  = errors.New("record violates a check constraint")
	ErrUnknownGroup = errors.New("unknown group")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// wrapPQ annotates err with op and maps known constraint codes onto sentinels.
func wrapPQ(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrDuplicate, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrReferenced, pqErr.Constraint)
		case pqCheckViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrCheckFailed, pqErr.Constraint)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// namedExecer is satisfied by both *sqlx.DB and *sqlx.Tx.
type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 5
	}
	if limit > 100 {
		return 100
	}
	return limit
}
