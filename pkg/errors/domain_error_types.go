package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainErrorType represents the category of domain error
type DomainErrorType string

const (
	// DomainValidationError indicates input validation failure
	DomainValidationError DomainErrorType = "VALIDATION_ERROR"

	// DomainNotFoundError indicates a resource was not found
	DomainNotFoundError DomainErrorType = "NOT_FOUND"

	// DomainConflictError indicates a conflict with existing state
	DomainConflictError DomainErrorType = "CONFLICT"

	// DomainInfrastructureError indicates an infrastructure-level failure
	DomainInfrastructureError DomainErrorType = "INFRASTRUCTURE_ERROR"
)

// DomainError is a typed domain failure. Two DomainErrors match under
// errors.Is when their Type and Code are equal.
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		StatusCode: domainErrorTypeToStatusCode(errorType),
	}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// WithDetail returns a copy of e carrying the extra detail. Sentinels are
// shared, so they are never mutated.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func domainErrorTypeToStatusCode(errorType DomainErrorType) int {
	switch errorType {
	case DomainValidationError:
		return http.StatusBadRequest
	case DomainNotFoundError:
		return http.StatusNotFound
	case DomainConflictError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Comment validation errors, raised by the entity factory in a fixed order.
var (
	ErrInvalidCommentID = NewDomainError(
		DomainValidationError,
		"INVALID_ID",
		"comment must have a valid id",
	)

	ErrMissingAuthor = NewDomainError(
		DomainValidationError,
		"MISSING_AUTHOR",
		"comment must have an author",
	)

	ErrAuthorTooShort = NewDomainError(
		DomainValidationError,
		"AUTHOR_TOO_SHORT",
		"comment author's name must be at least 2 characters long",
	)

	ErrMissingPostID = NewDomainError(
		DomainValidationError,
		"MISSING_POST_ID",
		"comment must contain a postId",
	)

	ErrMissingText = NewDomainError(
		DomainValidationError,
		"MISSING_TEXT",
		"comment must include at least one character of text",
	)

	ErrMissingOrigin = NewDomainError(
		DomainValidationError,
		"MISSING_ORIGIN",
		"comment must have a source",
	)

	ErrInvalidReplyToID = NewDomainError(
		DomainValidationError,
		"INVALID_REPLY_TO_ID",
		"if supplied, comment must contain a valid replyToId",
	)

	ErrAuthorTooLong = NewDomainError(
		DomainValidationError,
		"AUTHOR_TOO_LONG",
		"comment author's name must be at most 100 characters long",
	)

	ErrTextTooLong = NewDomainError(
		DomainValidationError,
		"TEXT_TOO_LONG",
		"comment text must be at most 10000 characters long",
	)

	ErrUnusableText = NewDomainError(
		DomainValidationError,
		"UNUSABLE_TEXT",
		"comment contains no usable text",
	)
)

// Source validation errors.
var (
	ErrMissingOriginIP = NewDomainError(
		DomainValidationError,
		"MISSING_ORIGIN_IP",
		"comment source must contain an IP",
	)

	ErrInvalidOriginIP = NewDomainError(
		DomainValidationError,
		"INVALID_ORIGIN_IP",
		"comment source must contain a valid IP",
	)
)

// Use case errors.
var (
	ErrMissingCommentID = NewDomainError(
		DomainValidationError,
		"MISSING_COMMENT_ID",
		"you must supply a comment id",
	)

	ErrCommentNotFound = NewDomainError(
		DomainNotFoundError,
		"COMMENT_NOT_FOUND",
		"comment not found",
	)

	ErrDuplicateCommentID = NewDomainError(
		DomainConflictError,
		"DUPLICATE_ID",
		"a comment with this id already exists",
	)

	ErrCommentHasReplies = NewDomainError(
		DomainConflictError,
		"HAS_REPLIES",
		"comment still has replies",
	)

	ErrParentNotFound = NewDomainError(
		DomainConflictError,
		"PARENT_NOT_FOUND",
		"the comment being replied to does not exist",
	)
)

// GetDomainError extracts a DomainError from an error chain.
func GetDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}
