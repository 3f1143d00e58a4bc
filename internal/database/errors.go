package database

import (
	"errors"

	"github.com/lib/pq"
)

const pgForeignKeyViolation = "23503"

// IsForeignKeyViolation reports whether err is a Postgres foreign key
// violation. Writes referencing a product id classify this to distinguish
// "no such product" from a real failure.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation
}
