// Package repositories implements the data access layer over *sql.DB.
package repositories

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// DuplicateError reports a unique-constraint violation on a named field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// duplicateError maps a pq unique-violation to a DuplicateError, or returns
// the original error untouched.
func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	switch pqErr.Constraint {
	case "users_username_key":
		return &DuplicateError{Field: "username"}
	case "users_email_key":
		return &DuplicateError{Field: "email"}
	case "users_phone_key":
		return &DuplicateError{Field: "phone"}
	}
	return &DuplicateError{Field: "field"}
}
