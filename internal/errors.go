package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure. The transport layer owns the mapping to status codes.
type ErrorKind string

const (
	KindValidation            ErrorKind = "VALIDATION_ERROR"
	KindInvalidCredentials    ErrorKind = "INVALID_CREDENTIALS"
	KindAccountInactive       ErrorKind = "ACCOUNT_INACTIVE"
	KindPermissionDenied      ErrorKind = "PERMISSION_DENIED"
	KindNotFound              ErrorKind = "NOT_FOUND"
	KindTokenExpiredOrInvalid ErrorKind = "TOKEN_EXPIRED_OR_INVALID"
	KindConflict              ErrorKind = "CONFLICT"
	KindUnauthenticated       ErrorKind = "UNAUTHENTICATED"
	KindPasswordMismatch      ErrorKind = "PASSWORD_MISMATCH"
	KindInternal              ErrorKind = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidBody      ErrorCode = "INVALID_REQUEST_BODY"
	ErrCodeUnknownPerm      ErrorCode = "UNKNOWN_PERMISSION"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeAccountInactive    ErrorCode = "ACCOUNT_INACTIVE"
	ErrCodeMissingToken       ErrorCode = "MISSING_TOKEN"
	ErrCodeInvalidToken       ErrorCode = "TOKEN_EXPIRED_OR_INVALID"
	ErrCodePasswordMismatch   ErrorCode = "PASSWORD_MISMATCH"

	ErrCodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	ErrCodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
	ErrCodeResetTokenInvalid ErrorCode = "RESET_TOKEN_INVALID"

	ErrCodeEmailTaken    ErrorCode = "EMAIL_TAKEN"
	ErrCodeUsernameTaken ErrorCode = "USERNAME_TAKEN"
	ErrCodePhoneTaken    ErrorCode = "PHONE_TAKEN"
	ErrCodeDuplicate     ErrorCode = "DUPLICATE_RECORD"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Kind    ErrorKind   `json:"type"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Cause   error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if details, ok := e.Details.(ValidationErrors); ok && len(details.Errors) > 0 {
		messages := make([]string, len(details.Errors))
		for i, err := range details.Errors {
			messages[i] = err.Message
		}
		return strings.Join(messages, "; ")
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so wrapped copies of a sentinel still compare equal.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t.Code == "" {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy; sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	c := *e
	c.Cause = cause
	return &c
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	c := *e
	c.Details = details
	return &c
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func newError(kind ErrorKind, code ErrorCode, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return newError(KindValidation, code, message)
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return NewValidationError("validation failed", ErrCodeValidationFailed).WithDetails(ValidationErrors{
		Errors: []ValidationError{{Field: field, Message: message, Code: string(code)}},
	})
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return newError(KindNotFound, code, message)
}

func NewUnauthenticatedError(message string, code ErrorCode) *AppError {
	return newError(KindUnauthenticated, code, message)
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return newError(KindPermissionDenied, code, message)
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return newError(KindConflict, code, message)
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{Kind: KindInternal, Code: ErrCodeInternal, Message: message, Cause: cause}
}

var (
	ErrInvalidCredentials = newError(KindInvalidCredentials, ErrCodeInvalidCredentials, "wrong credentials")
	ErrAccountInactive    = newError(KindAccountInactive, ErrCodeAccountInactive, "your account is inactive, please contact support")
	ErrMissingToken       = NewUnauthenticatedError("missing authorization token", ErrCodeMissingToken)
	ErrTokenInvalid       = NewUnauthenticatedError("token expired or invalid", ErrCodeInvalidToken)
	ErrPasswordMismatch   = newError(KindPasswordMismatch, ErrCodePasswordMismatch, "current password does not match")

	ErrPermissionDenied  = NewForbiddenError("you do not have permission to perform this action", ErrCodePermissionDenied)
	ErrUserNotFound      = NewNotFoundError("user not found", ErrCodeUserNotFound)
	ErrResetTokenInvalid = newError(KindTokenExpiredOrInvalid, ErrCodeResetTokenInvalid, "invalid or expired token")

	ErrDuplicateRecord = NewConflictError("record already exists", ErrCodeDuplicate)
	ErrInvalidBody     = NewValidationError("invalid request body", ErrCodeInvalidBody)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the kind of err; anything that is not an AppError is internal.
func KindOf(err error) ErrorKind {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorKind   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
