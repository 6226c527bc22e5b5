package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested record, or a record it references, does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func wrapNoRows(err error, action string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", action, err)
}

// translateWriteError maps constraint violations of an INSERT onto the
// package sentinels.
func translateWriteError(err error, action string) error {
	switch {
	case isPgCode(err, pgUniqueViolation):
		return ErrConflict
	case isPgCode(err, pgForeignKeyViolation):
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", action, err)
}
