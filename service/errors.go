package services

import "errors"

// Sentinel errors for the failure classes the controllers need to tell
// apart. Everything else is wrapped with fmt.Errorf and treated as a 500.
var (
	// ErrFieldNotFound means the requested field id is not in the form schema.
	ErrFieldNotFound = errors.New("unknown form field")

	// ErrNoReadyDocuments means the resolved candidate document set was
	// empty; grounding requires at least one ready document.
	ErrNoReadyDocuments = errors.New("no ready documents available for grounding")

	// ErrLLMUnavailable means the generation provider is not configured.
	ErrLLMUnavailable = errors.New("generation provider not configured")

	// ErrMalformedLLMOutput means the provider responded but its payload
	// could not be parsed into a suggestion object.
	ErrMalformedLLMOutput = errors.New("generation provider returned malformed output")

	// ErrContentEmpty means extraction produced no usable text or chunks.
	ErrContentEmpty = errors.New("no extractable text found in uploaded document")

	// ErrSearchUnavailable means the keyword search index is not configured.
	ErrSearchUnavailable = errors.New("search index not configured")
)
