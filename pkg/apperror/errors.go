package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet & Ledger (WLT) ----

func ErrInvalidAmount() *AppError {
	return New("WLT_001", "Amount must be positive", http.StatusBadRequest)
}

func ErrInsufficientBalance() *AppError {
	return New("WLT_002", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New("WLT_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDuplicateOperation() *AppError {
	return New("WLT_004", "Operation already applied", http.StatusConflict)
}

// ---- Escrow (ESC) ----

func ErrUnauthorized() *AppError {
	return New("ESC_001", "Actor is not permitted to perform this action on the deal", http.StatusForbidden)
}

func ErrInvalidState(current string) *AppError {
	return New("ESC_002", fmt.Sprintf("Operation not valid while deal is %s", current), http.StatusConflict)
}

func ErrSelfTrade() *AppError {
	return New("ESC_003", "Buyer and seller must be different users", http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

// ErrStorage wraps an underlying storage failure. Storage failures are never
// reported as business-rule errors.
func ErrStorage(err error) *AppError {
	return Wrap("SYS_001", "Internal storage error", http.StatusInternalServerError, err)
}

// InternalError wraps any other unexpected internal error.
func InternalError(err error) *AppError {
	return Wrap("SYS_000", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request-validation error.
func Validation(message string) *AppError {
	return New("WLT_001", message, http.StatusBadRequest)
}
