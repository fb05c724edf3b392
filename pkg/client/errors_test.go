package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lhelper/liblibai-client/pkg/auth"
)

// TestAPIErrorMessage tests APIError formatting
func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "status with body",
			err:  &APIError{Method: MethodGet, URL: "https://x/models", StatusCode: 500, Body: "boom"},
			want: "api request failed: GET https://x/models: status 500: boom",
		},
		{
			name: "status without body",
			err:  &APIError{Method: MethodPost, URL: "https://x/run-workflow", StatusCode: 404},
			want: "api request failed: POST https://x/run-workflow: status 404",
		},
		{
			name: "transport error",
			err:  &APIError{Method: MethodGet, URL: "https://x/models", Err: errors.New("connection refused")},
			want: "api request failed: GET https://x/models: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestInvalidArgumentErrorMessage tests InvalidArgumentError formatting
func TestInvalidArgumentErrorMessage(t *testing.T) {
	withValue := &InvalidArgumentError{Argument: "method", Value: "PUT", Message: "unsupported request method"}
	if got := withValue.Error(); got != `invalid argument method "PUT": unsupported request method` {
		t.Errorf("Error() = %q", got)
	}

	cause := errors.New("denied")
	withoutValue := &InvalidArgumentError{Argument: "image", Message: "cannot read", Err: cause}
	if got := withoutValue.Error(); got != "invalid argument image: cannot read" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(withoutValue, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

// TestErrorHelpers tests the Is* helpers through wrapping
func TestErrorHelpers(t *testing.T) {
	apiErr := fmt.Errorf("outer: %w", &APIError{StatusCode: 502, Err: ErrUnexpectedStatus})
	argErr := fmt.Errorf("outer: %w", &InvalidArgumentError{Argument: "endpoint"})
	cfgErr := fmt.Errorf("outer: %w", &auth.ConfigurationError{MissingSecretKey: true})

	tests := []struct {
		name      string
		err       error
		isAPI     bool
		isArg     bool
		isConfig  bool
		wantCode  int
	}{
		{name: "api error", err: apiErr, isAPI: true, wantCode: 502},
		{name: "invalid argument", err: argErr, isArg: true},
		{name: "configuration", err: cfgErr, isConfig: true},
		{name: "plain", err: errors.New("x")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAPIError(tt.err); got != tt.isAPI {
				t.Errorf("IsAPIError() = %v, want %v", got, tt.isAPI)
			}
			if got := IsInvalidArgument(tt.err); got != tt.isArg {
				t.Errorf("IsInvalidArgument() = %v, want %v", got, tt.isArg)
			}
			if got := IsConfigurationError(tt.err); got != tt.isConfig {
				t.Errorf("IsConfigurationError() = %v, want %v", got, tt.isConfig)
			}
			if got := StatusCode(tt.err); got != tt.wantCode {
				t.Errorf("StatusCode() = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

// TestIsTimeout tests timeout detection
func TestIsTimeout(t *testing.T) {
	if !IsTimeout(&APIError{Err: context.DeadlineExceeded}) {
		t.Error("expected deadline exceeded to be a timeout")
	}
	if IsTimeout(&APIError{Err: errors.New("refused")}) {
		t.Error("plain error reported as timeout")
	}
	if IsTimeout(nil) {
		t.Error("nil reported as timeout")
	}
}

// TestTruncateBody tests that long bodies are cut
func TestTruncateBody(t *testing.T) {
	short := "short"
	if got := truncateBody([]byte(short)); got != short {
		t.Errorf("truncateBody() = %q", got)
	}

	long := strings.Repeat("a", maxErrorBody+10)
	got := truncateBody([]byte(long))
	if len(got) != maxErrorBody+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncateBody() length = %d", len(got))
	}
}
