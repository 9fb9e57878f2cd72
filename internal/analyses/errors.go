package analyses

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrDocumentTooShort rejects input below the minimum length, before any
	// LLM call is made.
	ErrDocumentTooShort = errors.New("document too short")

	// ErrNotAPolicyDocument rejects text that fails the insurance keyword
	// density check.
	ErrNotAPolicyDocument = errors.New("not a policy document")
)

const (
	ErrorCodeDocumentTooShort = "DOCUMENT_TOO_SHORT"
	ErrorCodeInvalidDocument  = "INVALID_DOCUMENT"
	ErrorCodeUpstreamAPI      = "UPSTREAM_API_ERROR"
	ErrorCodeResponseParse    = "RESPONSE_PARSE_ERROR"
	ErrorCodeLLMTimeout       = "LLM_TIMEOUT"
	ErrorCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrorCodeStorage          = "STORAGE_ERROR"
	ErrorCodeInternal         = "INTERNAL_ERROR"
)
