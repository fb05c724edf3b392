// Package auth holds liblibAI credentials and produces signed query
// parameter sets.
//
// Every request to the liblibAI API carries four authentication parameters
// in its query string: AccessKey, SignatureNonce, Timestamp and Signature.
// The signature is the base64 encoded HMAC-SHA1 of the canonical string,
// keyed with the secret key. The canonical string is built from all other
// parameters sorted by name:
//
//	AccessKey=AK&SignatureNonce=<uuid>&Timestamp=<unix seconds>&task_id=abc
//
// Values are percent-encoded with only the RFC 3986 unreserved characters
// left literal. Keys are written as-is.
//
// # Basic Usage
//
//	signer := auth.NewSigner(auth.Credentials{AccessKey: ak, SecretKey: sk})
//	signed, err := signer.Sign(auth.Params{"task_id": id})
//	if err != nil {
//	    if auth.IsConfigurationError(err) {
//	        // prompt for keys
//	    }
//	    return err
//	}
//	req.URL.RawQuery = signed.Values().Encode()
package auth
