package spiral

import "errors"

// Container parsing errors.
var (
	// ErrInvalidMagic is returned when a container does not start with the
	// expected magic bytes.
	ErrInvalidMagic = errors.New("invalid magic")

	// ErrNoEntries is returned when a container has no entries.
	ErrNoEntries = errors.New("no entries")

	// ErrOutOfBounds is returned when an entry does not lie within its
	// container.
	ErrOutOfBounds = errors.New("entry out of bounds")

	// ErrTooManyEntries is returned when an entry count is implausibly large.
	ErrTooManyEntries = errors.New("too many entries")

	// ErrMissingRSI is returned when a typed SRD block requires a resource
	// index block which is not present.
	ErrMissingRSI = errors.New("missing rsi block")

	// ErrInvalidTable is returned when a CPK @UTF table is malformed.
	ErrInvalidTable = errors.New("invalid utf table")
)

// MaxEntries limits the number of entries a container index may declare.
const MaxEntries = 1 << 20
