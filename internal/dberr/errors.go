// Package dberr defines the error kinds returned by the storage API.
//
// Propagation policy: none of these are retried internally. IoError and
// CorruptPage are considered fatal for the session; DuplicateKey, NotFound,
// TooLarge and SchemaMismatch are user errors that leave state unchanged.
package dberr

import "github.com/pkg/errors"

// Sentinel values. Use errors.Is against these; Io/Corrupt/Invariant below
// attach a wrapped cause while staying errors.Is-compatible with these.
var (
	ErrDuplicateKey      = errors.New("dberr: duplicate key")
	ErrNotFound          = errors.New("dberr: key not found")
	ErrTooLarge          = errors.New("dberr: record exceeds max cell size")
	ErrSchemaMismatch    = errors.New("dberr: record does not match schema")
	ErrInvariantViolated = errors.New("dberr: btree invariant violated")
	ErrIO                = errors.New("dberr: i/o error")
	ErrCorruptPage       = errors.New("dberr: corrupt page")

	// ErrStaleCursor is a diagnostic, not one of the original storage-API
	// error kinds: it fires when a cursor is advanced after a mutation on
	// the underlying tree invalidated it (see the tree's generation counter).
	ErrStaleCursor = errors.New("dberr: cursor invalidated by a later mutation")
)

// kindErr pairs a sentinel kind with a detail/cause, so callers can both
// errors.Is(err, ErrIO) and read the wrapped detail via Error()/Cause().
type kindErr struct {
	kind   error
	detail string
	cause  error
}

func (e *kindErr) Error() string {
	if e.cause != nil {
		return e.kind.Error() + ": " + e.detail + ": " + e.cause.Error()
	}
	return e.kind.Error() + ": " + e.detail
}

func (e *kindErr) Unwrap() error { return e.kind }
func (e *kindErr) Cause() error  { return e.cause }

// Io wraps a lower-level I/O failure (seek/read/write/sync/flock) as ErrIO.
func Io(op string, cause error) error {
	return &kindErr{kind: ErrIO, detail: op, cause: cause}
}

// Corrupt wraps a page-header sanity-check failure as ErrCorruptPage.
func Corrupt(detail string) error {
	return &kindErr{kind: ErrCorruptPage, detail: detail}
}

// Invariant wraps a validate() failure with the detail of what broke.
func Invariant(detail string) error {
	return &kindErr{kind: ErrInvariantViolated, detail: detail}
}

// Is reports whether err is (or wraps) target, delegating to pkg/errors
// which implements the same unwrap protocol as the standard library.
func Is(err, target error) bool { return errors.Is(err, target) }
