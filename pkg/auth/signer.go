package auth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// Credentials is the liblibAI key pair.
type Credentials struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// Configured reports whether both keys are set.
func (c Credentials) Configured() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// Params are caller-supplied query parameters.
type Params map[string]string

// CredentialPersister stores credentials durably.
type CredentialPersister interface {
	SaveCredentials(ctx context.Context, accessKey, secretKey string) error
}

// SignedParams is a signed parameter set. It must not be modified after
// signing; build a new one with Sign instead.
type SignedParams struct {
	params map[string]string
}

// Get returns the value of key, or "" when absent.
func (s *SignedParams) Get(key string) string {
	return s.params[key]
}

// Signature returns the computed signature.
func (s *SignedParams) Signature() string {
	return s.params[ParamSignature]
}

// Len returns the number of parameters including Signature.
func (s *SignedParams) Len() int {
	return len(s.params)
}

// Map returns a copy of the parameter set.
func (s *SignedParams) Map() map[string]string {
	out := make(map[string]string, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

// Values returns the parameter set as url.Values.
func (s *SignedParams) Values() url.Values {
	v := make(url.Values, len(s.params))
	for k, val := range s.params {
		v.Set(k, val)
	}
	return v
}

// Signer holds credentials and signs parameter sets.
//
// A Signer is safe for concurrent use. Configure may run while other
// goroutines sign; each Sign call sees one consistent key pair.
type Signer struct {
	mu        sync.RWMutex
	creds     Credentials
	now       func() time.Time
	nonce     func() string
	persister CredentialPersister
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithClock overrides the time source used for the Timestamp parameter.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// WithNonce overrides the SignatureNonce generator.
func WithNonce(nonce func() string) SignerOption {
	return func(s *Signer) {
		s.nonce = nonce
	}
}

// WithPersister makes Configure store new credentials through p.
func WithPersister(p CredentialPersister) SignerOption {
	return func(s *Signer) {
		s.persister = p
	}
}

// NewSigner creates a Signer holding creds. Empty credentials are allowed;
// Sign fails until Configure provides both keys.
func NewSigner(creds Credentials, opts ...SignerOption) *Signer {
	s := &Signer{
		creds: creds,
		now:   time.Now,
		nonce: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credentials returns the currently held key pair.
func (s *Signer) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// IsConfigured reports whether both keys are set.
func (s *Signer) IsConfigured() bool {
	return s.Credentials().Configured()
}

// Configure replaces the held credentials and persists them when a
// persister is set. The in-memory keys are replaced even if persisting
// fails; the returned error only reports the storage failure.
func (s *Signer) Configure(ctx context.Context, accessKey, secretKey string) error {
	s.mu.Lock()
	s.creds = Credentials{AccessKey: accessKey, SecretKey: secretKey}
	persister := s.persister
	s.mu.Unlock()

	if persister == nil {
		return nil
	}
	if err := persister.SaveCredentials(ctx, accessKey, secretKey); err != nil {
		return fmt.Errorf("save api keys: %w", err)
	}
	klog.V(2).InfoS("API keys saved")
	return nil
}

// Sign merges params with AccessKey, SignatureNonce and Timestamp and
// appends the Signature. Callers may not supply any of those four keys.
func (s *Signer) Sign(params Params) (*SignedParams, error) {
	creds := s.Credentials()
	if !creds.Configured() {
		return nil, &ConfigurationError{
			MissingAccessKey: creds.AccessKey == "",
			MissingSecretKey: creds.SecretKey == "",
		}
	}

	for _, k := range reservedKeys {
		if _, ok := params[k]; ok {
			return nil, &ReservedKeyError{Key: k}
		}
	}

	merged := make(map[string]string, len(params)+4)
	for k, v := range params {
		merged[k] = v
	}
	merged[ParamAccessKey] = creds.AccessKey
	merged[ParamSignatureNonce] = s.nonce()
	merged[ParamTimestamp] = strconv.FormatInt(s.now().Unix(), 10)

	canonical := Canonical(merged)
	merged[ParamSignature] = Compute(creds.SecretKey, canonical)

	klog.V(5).InfoS("Signed request parameters", "canonical", canonical)

	return &SignedParams{params: merged}, nil
}
