package auth

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotConfigured     = errors.New("api keys not configured")
	ErrReservedKey       = errors.New("reserved signing parameter")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrMissingParameter  = errors.New("missing signing parameter")
)

// ConfigurationError is returned when signing is attempted without both
// an access key and a secret key.
type ConfigurationError struct {
	MissingAccessKey bool
	MissingSecretKey bool
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.MissingAccessKey && e.MissingSecretKey:
		return "configuration error: access key and secret key are not set"
	case e.MissingAccessKey:
		return "configuration error: access key is not set"
	default:
		return "configuration error: secret key is not set"
	}
}

func (e *ConfigurationError) Unwrap() error {
	return ErrNotConfigured
}

// ReservedKeyError is returned when caller parameters collide with one of
// the parameters the signer owns.
type ReservedKeyError struct {
	Key string
}

func (e *ReservedKeyError) Error() string {
	return fmt.Sprintf("parameter %q is reserved for request signing", e.Key)
}

func (e *ReservedKeyError) Unwrap() error {
	return ErrReservedKey
}

// IsConfigurationError returns true if err reports missing credentials.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsReservedKeyError returns true if err reports a reserved key collision.
func IsReservedKeyError(err error) bool {
	var re *ReservedKeyError
	return errors.As(err, &re)
}
