package apperror

import "fmt"

// ServiceError tags a storage or dependency failure with a stable
// "<package>.<operation>.<reason>" code that the HTTP layer exposes to clients.
type ServiceError struct {
	code string
	err  error
}

// New builds a ServiceError for operation and reason wrapping cause.
func New(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable failure code.
func (e *ServiceError) Code() string {
	return e.code
}
