package types

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrVectorUnsupported marks a store that cannot rank by embedding.
	// Retrieval treats it as a permanent fallback, not a fault.
	ErrVectorUnsupported = errors.New("vector search not supported by this store")
)
