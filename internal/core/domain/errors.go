package domain

import "errors"

// Domain errors - used across all layers. Each corresponds to one of the
// error kinds the engine is allowed to surface: lower layers wrap
// one of these with fmt.Errorf("...: %w", ...); only the HTTP boundary
// translates them into status codes.
var (
	// ErrNotFound indicates the requested index or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an index name collision.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates a malformed request, mapping, or query shape.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIndexClosed indicates a write or read was attempted against a closed index.
	ErrIndexClosed = errors.New("index is closed")

	// ErrTimeout indicates a search deadline was exceeded before the plan finished.
	ErrTimeout = errors.New("search deadline exceeded")

	// ErrUnavailable indicates the posting store or job queue could not be reached.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInternalInvariant indicates a postcondition of the engine was violated,
	// e.g. a chunk's recorded document count disagreed with its posting count.
	ErrInternalInvariant = errors.New("internal invariant violated")
)
