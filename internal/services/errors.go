package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorBadGateway   ErrorCode = "bad_gateway"
	ErrorScanFailed   ErrorCode = "scan_failed"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
	// ManualEntry tells the kiosk to fall back to typing the answer by hand.
	ManualEntry bool
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error  { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewBadGatewayError(msg string) error { return &ServiceError{Code: ErrorBadGateway, Message: msg} }

func NewScanFailedError(msg string) error {
	return &ServiceError{Code: ErrorScanFailed, Message: msg, ManualEntry: true}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

var (
	// ErrUnknownCluster is returned when a cluster id is not part of the current snapshot.
	ErrUnknownCluster = errors.New("unknown cluster")
)
