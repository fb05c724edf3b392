package client

import (
	"errors"
	"fmt"
	"net"

	"github.com/lhelper/liblibai-client/pkg/auth"
)

// Common errors
var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrTaskFailed       = errors.New("task failed")
)

// maxErrorBody bounds the response body kept on an APIError.
const maxErrorBody = 512

// APIError reports a failed API call: a transport failure, a non-2xx
// status or an undecodable body. URL never includes the signed query.
type APIError struct {
	Method     Method
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("api request failed: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("api request failed: %s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("api request failed: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// InvalidArgumentError reports a programming error in the caller, such as
// an unsupported HTTP method. No request is sent.
type InvalidArgumentError struct {
	Argument string
	Value    string
	Message  string
	Err      error
}

func (e *InvalidArgumentError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid argument %s %q: %s", e.Argument, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Message)
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.Err
}

// IsAPIError returns true if the error is a transport or HTTP failure.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// IsInvalidArgument returns true if the error reports a bad argument.
func IsInvalidArgument(err error) bool {
	var ie *InvalidArgumentError
	return errors.As(err, &ie)
}

// IsConfigurationError returns true if the request could not be signed
// because API keys are missing.
func IsConfigurationError(err error) bool {
	return auth.IsConfigurationError(err)
}

// IsTimeout returns true if the error was caused by a request timeout.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// StatusCode returns the HTTP status carried by an APIError, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

func truncateBody(body []byte) string {
	if len(body) <= maxErrorBody {
		return string(body)
	}
	return string(body[:maxErrorBody]) + "..."
}
