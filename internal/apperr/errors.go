package apperr

import (
	"errors"
	"fmt"
)

const (
	CodeValidation       = "validation"
	CodePrecondition     = "precondition"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeUnauthorized     = "unauthorized"
	CodeGenerationFailed = "generation_failed"
	CodeUpstream         = "upstream"
	CodeIntegrity        = "integrity"
	CodeInternal         = "internal"
)

type Error struct {
	Code    string
	Reason  string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code and reason so that sentinels keep matching after
// WithMessage or Wrap produce a copy.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	return t.Code == e.Code
}

// Sanitized reports whether the message must be replaced before it reaches a
// caller.
func (e *Error) Sanitized() bool {
	switch e.Code {
	case CodeUpstream, CodeIntegrity, CodeInternal:
		return true
	default:
		return false
	}
}

func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation, CodePrecondition:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeGenerationFailed, CodeUpstream:
		return 502
	default:
		return 500
	}
}

func newError(code, reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Status: statusForCode(code)}
}

func Validation(format string, args ...any) *Error {
	return newError(CodeValidation, "invalid_request", fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return newError(CodeNotFound, "not_found", fmt.Sprintf(format, args...))
}

func Unauthorized(message string) *Error {
	return newError(CodeUnauthorized, "unauthorized", message)
}

func Upstream(err error, format string, args ...any) *Error {
	e := newError(CodeUpstream, "upstream_unavailable", fmt.Sprintf(format, args...))
	e.Err = err
	return e
}

func Internal(err error, message string) *Error {
	e := newError(CodeInternal, "internal", message)
	e.Err = err
	return e
}

var (
	ErrDocumentsNotReady = newError(CodePrecondition, "documents_not_ready", "application documents are not fully ingested")
	ErrDocumentsMissing  = newError(CodePrecondition, "documents_missing", "application documents not found")
	ErrPriorArtCount     = newError(CodePrecondition, "prior_art_count", "a 102 rejection must cite exactly one prior-art reference")
	ErrPriorArtMissing   = newError(CodePrecondition, "prior_art_missing", "prior-art description not found")
	ErrNotDocketed       = newError(CodePrecondition, "not_docketed", "rejection has not been docketed")
	ErrClaimNotFound     = newError(CodePrecondition, "claim_not_found", "rejected claim text not found")
	ErrNotAnalyzable     = newError(CodePrecondition, "not_analyzable", "rejection is not eligible for amendment analysis")
	ErrAnalyzable        = newError(CodePrecondition, "analyzable", "rejection requires a structured amendment, not a freeform response")
	ErrDraftMissing      = newError(CodePrecondition, "draft_missing", "no draft exists to finalize")
	ErrNotReady          = newError(CodePrecondition, "not_ready", "not every rejection has been finalized")
	ErrAlreadyFinalized  = newError(CodeConflict, "already_finalized", "record is already finalized")
	ErrDocketExists      = newError(CodeConflict, "docket_exists", "docket already exists for this rejection")
	ErrIDExhausted       = newError(CodeInternal, "id_exhausted", "could not generate a unique identifier")
	ErrGenerationFailed  = newError(CodeGenerationFailed, "generation_failed", "failed to generate a result, please try again")
	ErrRecordMissing     = newError(CodeIntegrity, "record_missing", "finalized record missing for rejection")
)

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
