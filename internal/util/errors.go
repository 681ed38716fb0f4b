package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrStoreOpen indicates the store file could not be opened or created
	ErrStoreOpen = errors.New("cannot open store")

	// ErrLocked indicates another process holds the write lock on the store
	ErrLocked = errors.New("store is locked by another writer")

	// ErrSchemaMismatch indicates the on-disk schema is newer than this build
	ErrSchemaMismatch = errors.New("unknown schema version")

	// ErrNotScalar indicates a scalar query produced more than one row or column
	ErrNotScalar = errors.New("query result is not a scalar")

	// ErrUnsupported indicates a column type or file format is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrInvalidID indicates a malformed persistent id
	ErrInvalidID = errors.New("invalid persistent id")

	// ErrUnknownAttribute indicates an attribute name outside the fixed layout
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrUnknownProperty indicates a report property that cannot be aggregated
	ErrUnknownProperty = errors.New("unknown property")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
