package domain

import "fmt"

// ValidationError reports malformed input detected either client-side (bad
// hexadecimal id, disallowed attribute name, non-serializable value) or by
// the registry (unknown type, attribute outside the configured schema).
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) ValidationError {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing target: a 404 from the registry or an
// empty lookup for an operation that requires an existing entity.
type NotFoundError struct {
	Msg string
}

func (e NotFoundError) Error() string { return e.Msg }

// AuthenticationError reports a rejected token (HTTP 403). The session
// recovers from it automatically exactly once by renewing the token.
type AuthenticationError struct {
	Msg string
}

func (e AuthenticationError) Error() string { return e.Msg }

// TransportError reports any other non-2xx response or a connection-level
// failure. Status is zero when no HTTP response was received.
type TransportError struct {
	Status int
	Msg    string
}

func (e TransportError) Error() string {
	if e.Status == 0 {
		return e.Msg
	}
	return fmt.Sprintf("error %d: %s", e.Status, e.Msg)
}

// NotImplementedError reports an operation the offline mirror does not
// support (bulk updates, project listing, deletion).
type NotImplementedError struct {
	Op string
}

func (e NotImplementedError) Error() string {
	return fmt.Sprintf("%s is not implemented in offline mode", e.Op)
}
