// Package apierr defines the error taxonomy surfaced by the game server lifecycle.
// Every collaborator failure is mapped to exactly one Kind at the orchestrator boundary.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies an error category.
type Kind string

// Error categories.
const (
	Unauthorized               Kind = "Unauthorized"
	EmptyInput                 Kind = "BadRequest.EmptyInput"
	InvalidJSON                Kind = "BadRequest.InvalidJSON"
	MissingOrMistypedField     Kind = "BadRequest.MissingOrMistypedField"
	InvalidMandatoryFieldCount Kind = "BadRequest.InvalidMandatoryFieldCount"
	GameNotAllowed             Kind = "BadRequest.GameNotAllowed"
	NoSuchServer               Kind = "NotFound.NoSuchServer"
	NoSuchIPInPortPool         Kind = "NotFound.NoSuchIpInPortPool"
	NoPortsAvailable           Kind = "Conflict.NoPortsAvailable"
	PortTaken                  Kind = "Conflict.PortTaken"
	PortNotInPool              Kind = "Conflict.PortNotInPool"
	BackendUnavailable         Kind = "Internal.BackendUnavailable"
	AddressUnresolved          Kind = "Internal.AddressUnresolved"
	LauncherFailed             Kind = "Internal.LauncherFailed"
	StorageFault               Kind = "Internal.StorageFault"
	ServerUnreachable          Kind = "GatewayTimeout.ServerUnreachable"
)

// Error is a categorized failure carrying an HTTP status and a stable user-facing message.
// Cause is kept for logging only and never leaves the process.
type Error struct {
	Cause   error
	Kind    Kind
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind,
// so sentinel-style comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, status int, msg string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Cause: cause}
}

// KindOf returns the Kind of err, or an empty Kind if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HasKind reports whether err is an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StatusOf returns the HTTP status for err. Unknown errors map to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the user-facing message of err without internal details.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error"
}

// NewUnauthorized returns the error for a missing or mismatched auth key.
func NewUnauthorized() *Error {
	return newErr(Unauthorized, http.StatusUnauthorized, "Unauthorized access", nil)
}

// NewEmptyInput returns the error for a request without a JSON body.
func NewEmptyInput() *Error {
	return newErr(EmptyInput, http.StatusBadRequest, "Input json is not provided", nil)
}

// NewInvalidJSON returns the error for a body that is not a JSON object.
func NewInvalidJSON(cause error) *Error {
	return newErr(InvalidJSON, http.StatusBadRequest, "Input json cannot be parsed", cause)
}

// NewMissingField returns the error naming the first missing or mistyped property.
func NewMissingField(field string) *Error {
	return newErr(MissingOrMistypedField, http.StatusBadRequest,
		fmt.Sprintf("Input json is malformed: property '%s' is missing", field), nil)
}

// NewInvalidFieldCount returns the error reporting how many mandatory properties are blank or negative.
func NewInvalidFieldCount(n int) *Error {
	return newErr(InvalidMandatoryFieldCount, http.StatusBadRequest,
		fmt.Sprintf("Input json has (%d) mandatory property invalid", n), nil)
}

// NewGameNotAllowed returns the error for a game outside the configured allow-list.
func NewGameNotAllowed(game string) *Error {
	return newErr(GameNotAllowed, http.StatusBadRequest, fmt.Sprintf("Game '%s' is not allowed", game), nil)
}

// NewNoSuchServer returns the error for an unknown server id.
func NewNoSuchServer() *Error {
	return newErr(NoSuchServer, http.StatusNotFound, "No game server with given id found", nil)
}

// NewNoSuchIP returns the error for an IP without a port pool row.
func NewNoSuchIP() *Error {
	return newErr(NoSuchIPInPortPool, http.StatusNotFound, "The given ip is not registered", nil)
}

// NewNoPortsAvailable returns the error for an exhausted port pool.
func NewNoPortsAvailable() *Error {
	return newErr(NoPortsAvailable, http.StatusConflict, "No available port left corresponding to the given IP", nil)
}

// NewPortTaken returns the error for committing a port that is already used.
func NewPortTaken() *Error {
	return newErr(PortTaken, http.StatusConflict, "The port is already in use", nil)
}

// NewPortNotInPool returns the error for a port that belongs to neither set of the pool.
func NewPortNotInPool() *Error {
	return newErr(PortNotInPool, http.StatusConflict, "The port does not belong to the pool of the given IP", nil)
}

// NewBackendUnavailable returns the error for a storage session that is not connected.
func NewBackendUnavailable(cause error) *Error {
	return newErr(BackendUnavailable, http.StatusInternalServerError,
		"A session to the database cannot be established", cause)
}

// NewAddressUnresolved returns the error for a failed public IP lookup.
func NewAddressUnresolved(cause error) *Error {
	return newErr(AddressUnresolved, http.StatusInternalServerError,
		"The public IP cannot be determined (check status of the ip lookup service)", cause)
}

// NewLauncherFailed returns the error for a game server binary that could not be started or stopped.
func NewLauncherFailed(msg string, cause error) *Error {
	return newErr(LauncherFailed, http.StatusInternalServerError, msg, cause)
}

// NewStorageFault returns a generic internal error with an operation-specific message.
func NewStorageFault(msg string, cause error) *Error {
	return newErr(StorageFault, http.StatusInternalServerError, msg, cause)
}

// NewServerUnreachable returns the error for a registered game server that does not answer A2S queries.
func NewServerUnreachable(cause error) *Error {
	return newErr(ServerUnreachable, http.StatusGatewayTimeout, "The game server does not answer status queries", cause)
}
