// Package errors defines the sentinel errors surfaced at the storage
// boundary. Each maps onto one of the error kinds documented for the
// storage engine: NotFound, SchemaViolation, IOError, CorruptFrame, and
// AuthDenied/Forbidden (the latter two are only ever returned by the
// request layer, never by the collection controller itself).
package errors

import "errors"

var (
	// ErrInvalidJSON is returned when a payload is not valid UTF-8 JSON.
	ErrInvalidJSON = errors.New("payload must be valid UTF-8 JSON")

	// ErrDocNotFound is logged when a lookup by _id misses; the caller
	// gets an empty result.
	ErrDocNotFound = errors.New("document not found")

	// ErrCollectionNameInvalid is logged for names outside [A-Za-z0-9_]+;
	// the write reports failure.
	ErrCollectionNameInvalid = errors.New("collection name must match [A-Za-z0-9_]+")

	// ErrReservedCollection is logged when a caller tries to write a
	// reserved collection directly through the generic CRUD pipeline; the
	// write reports failure.
	ErrReservedCollection = errors.New("collection name is reserved")

	// ErrSchemaViolation is logged when validate() rejects a document; the
	// insert reports failure.
	ErrSchemaViolation = errors.New("document failed schema validation")

	// ErrIO wraps a filesystem failure from the persistence engine.
	ErrIO = errors.New("persistence I/O failure")

	// ErrCorruptFrame is logged, not propagated, when a log frame fails
	// JSON parsing during recovery.
	ErrCorruptFrame = errors.New("corrupt log frame")

	// ErrAuthDenied is returned by the request layer when authenticate
	// resolves to the NONE role.
	ErrAuthDenied = errors.New("authentication denied")

	// ErrForbidden is returned by the request layer when has_permission
	// rejects an authenticated role for the requested action.
	ErrForbidden = errors.New("forbidden: insufficient role")

	// ErrUnknownAction is returned for an action that passes the permission
	// check but has no handler. No role is permitted an unrecognized action
	// name, so such a request is refused with ErrForbidden before dispatch.
	ErrUnknownAction = errors.New("unknown action")

	// ErrMissingField is returned when a required request field is absent.
	ErrMissingField = errors.New("missing required field")
)
