package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

// Exactly two failure variants cross the service boundary. Callers branch
// on the variant, not on concrete error types.
const (
	// InvalidArgument is a caller-correctable input or business-rule
	// violation. It is always raised before any storage mutation sticks.
	InvalidArgument ErrorCode = "invalid_argument"
	// StorageError means the backing store failed to apply an expected
	// write or raised a low-level fault. Never retried by the core.
	StorageError ErrorCode = "storage_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// HTTPStatus maps the variant to the adapter-layer status class.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func IsInvalidArgument(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == InvalidArgument
}

func IsStorageError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == StorageError
}

// Predefined errors for common cases. Messages for the transfer path keep
// the wording the API has always returned.
var (
	ErrAccountRequired       = NewAppError(InvalidArgument, "account cannot be null")
	ErrAccountNumberRequired = NewAppError(InvalidArgument, "param accountNumber cannot be null")
	ErrAccountNameRequired   = NewAppError(InvalidArgument, "account name cannot be empty")
	ErrNegativeBalance       = NewAppError(InvalidArgument, "balance cannot be negative")
	ErrNonPositiveAmount     = NewAppError(InvalidArgument, "amount must be a positive value")
	ErrAmountScale           = NewAppError(InvalidArgument, "amount scale cannot exceed 2 decimal digits")
	ErrAccountNotFound       = NewAppError(InvalidArgument, "Account not found")
	ErrFromAccountNotFound   = NewAppError(InvalidArgument, "'from' Account not found")
	ErrToAccountNotFound     = NewAppError(InvalidArgument, "'to' Account not found")
	ErrInsufficientFunds     = NewAppError(InvalidArgument, "insufficient funds")
	ErrSameAccountTransfer   = NewAppError(InvalidArgument, "FROM and TO accounts cannot be the same")
	ErrInvalidPageParams     = NewAppError(InvalidArgument, "pageNum must be >= 0 and pageSize must be > 0")

	ErrCannotBeginTransaction = NewAppError(StorageError, "cannot begin transaction inside a transactional scope")
)
