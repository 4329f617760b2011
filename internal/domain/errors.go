package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

// ErrAlreadyProcessed marks a transition against an entity that exists
// but is not in the required source state. Distinct from NOT_FOUND.
func ErrAlreadyProcessed(entity, id, status string) *AppError {
	return &AppError{
		Code:    "ALREADY_PROCESSED",
		Message: fmt.Sprintf("%s %s already processed (status %s)", entity, id, status),
		Status:  409,
	}
}

// ErrNoApplicablePolicy means commission policy resolution found no
// candidate at any scope level. Absence of policy must be visible,
// never defaulted to a zero-amount commission.
func ErrNoApplicablePolicy(conversionID string) *AppError {
	return &AppError{
		Code:    "NO_APPLICABLE_POLICY",
		Message: fmt.Sprintf("no commission policy applies to conversion %s", conversionID),
		Status:  422,
	}
}

// ErrConcurrencyConflict marks a lost atomic claim race. Callers fall
// back to the next-best candidate rather than failing hard.
func ErrConcurrencyConflict(msg string) *AppError {
	return &AppError{Code: "CONCURRENCY_CONFLICT", Message: msg, Status: 409}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}
