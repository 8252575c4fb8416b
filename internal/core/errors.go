package core

import (
	"errors"
	"fmt"
	"strings"
)

// Every failure in the key lifecycle and login flow maps to one of the
// errors below. All of them are terminal for the current request.
var (
	ErrMissingKey = errors.New("missing login key")
	ErrInvalidKey = errors.New("invalid login key")
	ErrExpiredKey = errors.New("login key expired")
	ErrNoClientIP = errors.New("client address could not be determined")

	// ErrInvalidSubject is returned when a key references a subject
	// that no longer exists. Intentionally an error rather than a
	// silent ignore: a dangling key is a sign of inconsistent state.
	ErrInvalidSubject = errors.New("subject bound to key no longer exists")

	ErrMissingMappingValue = errors.New("missing mapping field value")
	ErrMissingIP           = errors.New("missing ip in payload")
	ErrSubjectNotFound     = errors.New("subject not found")
	ErrDuplicateUsername   = errors.New("username already exists")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrInvalidEmail        = errors.New("email address is invalid")

	ErrMissingReturn   = errors.New("missing return url")
	ErrIncorrectLogout = errors.New("incorrect logout request")

	// ErrUnsafeRedirect guards against issuing browser redirects from
	// non-interactive execution contexts.
	ErrUnsafeRedirect = errors.New("redirect refused in non-interactive context")

	ErrGuardDenied = errors.New("request denied by guard expression")
)

// IPMismatchError reports a redemption attempt from an address outside
// the key's IP restriction and the configured whitelist.
type IPMismatchError struct {
	Observed string
	Expected string
}

func (e *IPMismatchError) Error() string {
	return fmt.Sprintf("client ip %s does not match key restriction %s", e.Observed, e.Expected)
}

// MissingFieldsError lists all required subject fields absent from a
// create payload, so the caller can fix them in one go.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ",")
}
