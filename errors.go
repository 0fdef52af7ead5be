package dbsync

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes of a synchronization run.
//
// Every condition except ErrInvalidFinalVersion is fatal: the enclosing
// transaction is rolled back and no SQL from the run is committed. Errors are
// usually wrapped in a *RevisionError or *VersionError carrying the file,
// revisions or versions involved; use errors.Is or the Is*Err helpers.
var (
	// ErrVersionNotFound is returned when the version row is missing from the
	// target database. Run `dbsync init` to create it.
	ErrVersionNotFound = errors.New("dbsync: database version not found")

	// ErrVersionUpdateConflict is returned when writing the new version did not
	// affect exactly one row.
	ErrVersionUpdateConflict = errors.New("dbsync: database version not updated")

	// ErrRevisionUnavailable is returned when a revision of the changelog cannot
	// be materialized, for example because the file did not exist yet.
	ErrRevisionUnavailable = errors.New("dbsync: revision unavailable")

	// ErrBoundaryNotFound is returned when headers of a range differ but no
	// revision inside the range changes the header. It indicates inconsistent
	// data from the version-control backend.
	ErrBoundaryNotFound = errors.New("dbsync: header boundary not found")

	// ErrTrailingNewlineMissing is returned when a full-range diff does not end
	// in a blank line. The changelog must be committed with an empty last line.
	ErrTrailingNewlineMissing = errors.New("dbsync: changelog does not end with a blank line")

	// ErrInvalidFinalVersion is returned when the latest revision reported by
	// the backend is negative. Runners treat it as nothing to do.
	ErrInvalidFinalVersion = errors.New("dbsync: invalid final version")

	// ErrVersionAhead is returned when the database is at a newer revision than
	// the changelog. The stored version is never decreased.
	ErrVersionAhead = errors.New("dbsync: database version ahead of changelog")
)

// IsVersionNotFoundErr returns true if err is or wraps ErrVersionNotFound.
func IsVersionNotFoundErr(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsVersionUpdateConflictErr returns true if err is or wraps ErrVersionUpdateConflict.
func IsVersionUpdateConflictErr(err error) bool {
	return errors.Is(err, ErrVersionUpdateConflict)
}

// IsRevisionUnavailableErr returns true if err is or wraps ErrRevisionUnavailable.
func IsRevisionUnavailableErr(err error) bool {
	return errors.Is(err, ErrRevisionUnavailable)
}

// IsBoundaryNotFoundErr returns true if err is or wraps ErrBoundaryNotFound.
func IsBoundaryNotFoundErr(err error) bool {
	return errors.Is(err, ErrBoundaryNotFound)
}

// IsTrailingNewlineMissingErr returns true if err is or wraps ErrTrailingNewlineMissing.
func IsTrailingNewlineMissingErr(err error) bool {
	return errors.Is(err, ErrTrailingNewlineMissing)
}

// IsInvalidFinalVersionErr returns true if err is or wraps ErrInvalidFinalVersion.
func IsInvalidFinalVersionErr(err error) bool {
	return errors.Is(err, ErrInvalidFinalVersion)
}

// IsVersionAheadErr returns true if err is or wraps ErrVersionAhead.
func IsVersionAheadErr(err error) bool {
	return errors.Is(err, ErrVersionAhead)
}

// RevisionError describes a failure tied to a changelog file and a revision
// range. From and To are equal for single-revision operations.
type RevisionError struct {
	Op   string
	File string
	From int64
	To   int64
	Err  error
}

func (e *RevisionError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("%s %s@%d: %v", e.Op, e.File, e.To, e.Err)
	}
	return fmt.Sprintf("%s %s@%d:%d: %v", e.Op, e.File, e.From, e.To, e.Err)
}

func (e *RevisionError) Unwrap() error {
	return e.Err
}

// VersionError describes a failure reading or writing the database version.
// Expected and Actual are meaningful for update conflicts (rows affected) and
// regressions (target vs stored version).
type VersionError struct {
	Op       string
	Expected int64
	Actual   int64
	Err      error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s (expected %d, got %d): %v", e.Op, e.Expected, e.Actual, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}
