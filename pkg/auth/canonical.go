package auth

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // the remote service mandates HMAC-SHA1
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Parameter names owned by the signer.
const (
	ParamAccessKey      = "AccessKey"
	ParamSignatureNonce = "SignatureNonce"
	ParamTimestamp      = "Timestamp"
	ParamSignature      = "Signature"
)

var reservedKeys = []string{ParamAccessKey, ParamSignatureNonce, ParamTimestamp, ParamSignature}

// Escape percent-encodes v leaving only A-Z, a-z, 0-9 and "-_.~" literal.
// Space becomes %20, never "+".
func Escape(v string) string {
	// QueryEscape already escapes a literal '+' as %2B, so every '+' left in
	// its output stands for a space.
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// SortedKeys returns the keys of params in byte-wise order.
func SortedKeys(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Canonical builds the string to sign from params. A Signature entry, if
// present, is ignored.
func Canonical(params map[string]string) string {
	var b strings.Builder
	for _, k := range SortedKeys(params) {
		if k == ParamSignature {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Escape(params[k]))
	}
	return b.String()
}

// Compute returns base64(HMAC-SHA1(secret, canonical)).
func Compute(secret, canonical string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature of a received query and compares it with
// the Signature parameter. Only the first value of each key is considered.
func Verify(values url.Values, secret string) error {
	for _, k := range reservedKeys {
		if values.Get(k) == "" {
			return fmt.Errorf("%w: %s", ErrMissingParameter, k)
		}
	}

	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	want := Compute(secret, Canonical(params))
	got := values.Get(ParamSignature)
	if !hmac.Equal([]byte(want), []byte(got)) {
		return ErrSignatureMismatch
	}
	return nil
}
