package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by the store. Callers match them with errors.Is.
var (
	// ErrNotFound reports that an operation referenced an id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation reports a missing required field, a duplicate
	// membership or a foreign-key failure.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrConnection reports that the store handle is closed, locked by another
	// process, or that acquiring the store lock was abandoned.
	ErrConnection = errors.New("store unavailable")
)

// sqliteConstraint is the primary SQLITE_CONSTRAINT result code. Extended
// codes (foreign key, unique, not null, check) share it in their low byte.
const sqliteConstraint = 19

// classify maps driver errors onto the store's error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConstraintViolation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConnection) {
		return err
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteConstraint {
		return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "constraint failed") {
		return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
	}
	if strings.Contains(msg, "database is closed") {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return err
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrConstraintViolation, name)
	}
	return nil
}
