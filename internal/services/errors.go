package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid        ErrorCode = "invalid"
	ErrorUnauthorized   ErrorCode = "unauthorized"
	ErrorSessionExpired ErrorCode = "session_expired"
	ErrorForbidden      ErrorCode = "forbidden"
	ErrorNotFound       ErrorCode = "not_found"
	ErrorStorage        ErrorCode = "storage"
	ErrorMisconfigured  ErrorCode = "misconfigured"
	ErrorAdminExists    ErrorCode = "admin_exists"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewStorageError(msg string) error   { return &ServiceError{Code: ErrorStorage, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewSessionExpiredError(msg string) error {
	return &ServiceError{Code: ErrorSessionExpired, Message: msg}
}

func NewMisconfiguredError(msg string) error {
	return &ServiceError{Code: ErrorMisconfigured, Message: msg}
}

func NewAdminExistsError(msg string) error {
	return &ServiceError{Code: ErrorAdminExists, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether err is a ServiceError carrying code.
func HasCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}
