package types

import "errors"

var (
	// ErrValidation marks a request rejected before any external call.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidAsset marks an image or file that cannot be decoded.
	ErrInvalidAsset = errors.New("invalid asset")
	// ErrReferenceFetch marks a single reference URL that could not be resolved.
	ErrReferenceFetch = errors.New("reference fetch failed")
	// ErrInference marks an unreachable or failing inference collaborator.
	ErrInference = errors.New("inference failed")
	// ErrInferenceTimeout marks an inference call that exceeded its deadline.
	ErrInferenceTimeout = errors.New("inference timed out")
	// ErrDecode marks a reply that did not match the expected schema.
	ErrDecode = errors.New("reply decode failed")
	// ErrNotFound marks a missing symbol context or revision.
	ErrNotFound = errors.New("not found")
)
