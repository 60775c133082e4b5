package document

// ErrorCode classifies pipeline errors. Parse, tokenization and assembly
// errors are fatal for the request; unit-level failures are carried on
// TranslatedUnit and never abort the document.
type ErrorCode string

const (
	// StructuralParser failures.
	ErrMalformedStructure ErrorCode = "MALFORMED_STRUCTURE"
	ErrUnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION"
	ErrEncryptedContent   ErrorCode = "ENCRYPTED_CONTENT"
	ErrNoExtractableText  ErrorCode = "NO_EXTRACTABLE_TEXT"

	// Budgeting failures.
	ErrTokenization ErrorCode = "TOKENIZATION_FAILED"

	// Translation transport failures (batch scope).
	ErrBatchFailed ErrorCode = "BATCH_FAILED"

	// DocumentAssembler failures.
	ErrFontEmbeddingFailed        ErrorCode = "FONT_EMBEDDING_FAILED"
	ErrSerializationLimitExceeded ErrorCode = "SERIALIZATION_LIMIT_EXCEEDED"

	ErrCancelled ErrorCode = "CANCELLED"
)

// PipelineError is the typed error for all fatal pipeline failures.
type PipelineError struct {
	Code    ErrorCode `json:"code"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	Page    int       `json:"page,omitempty"`
	Cause   error     `json:"-"`
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return e.Stage + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Stage + ": " + e.Message
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error { return e.Cause }

// NewError creates a PipelineError for the given stage and code.
func NewError(code ErrorCode, stage, message string, cause error) *PipelineError {
	return &PipelineError{Code: code, Stage: stage, Message: message, Cause: cause}
}

// NewPageError creates a PipelineError annotated with a page number.
func NewPageError(code ErrorCode, stage, message string, page int, cause error) *PipelineError {
	return &PipelineError{Code: code, Stage: stage, Message: message, Page: page, Cause: cause}
}

// IsFatal reports whether the error aborts the whole request. Unit-level
// failures never surface as PipelineError, so any PipelineError other
// than a batch-scoped transport error is fatal.
func IsFatal(err error) bool {
	pe, ok := err.(*PipelineError)
	if !ok {
		return err != nil
	}
	return pe.Code != ErrBatchFailed
}
