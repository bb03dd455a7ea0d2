// Package sigv4 implements AWS Signature Version 4 for presigned (query
// authenticated) requests: canonical request construction, signing-key
// derivation, signature computation, verification against a known credential
// pair, and re-signing of an already-verified request for a different host
// and credential pair.
package sigv4

import (
	"errors"
	"strings"
	"time"
)

// Errors returned by the verifier and re-signer.
var (
	// ErrMalformedRequest indicates missing or unparseable signing parameters.
	ErrMalformedRequest = errors.New("sigv4: malformed signing parameters")
	// ErrAccessKeyMismatch indicates the presented access key is not the expected one.
	ErrAccessKeyMismatch = errors.New("sigv4: access key mismatch")
	// ErrSignatureMismatch indicates the recomputed signature differs from the presented one.
	ErrSignatureMismatch = errors.New("sigv4: signature mismatch")
	// ErrRequestExpired indicates X-Amz-Date + X-Amz-Expires lies in the past.
	ErrRequestExpired = errors.New("sigv4: request expired")
)

const (
	algorithm       = "AWS4-HMAC-SHA256"
	scopeTerminator = "aws4_request"
	unsignedPayload = "UNSIGNED-PAYLOAD"

	amzAlgorithmKey     = "X-Amz-Algorithm"
	amzCredentialKey    = "X-Amz-Credential"
	amzDateKey          = "X-Amz-Date"
	amzExpiresKey       = "X-Amz-Expires"
	amzSignedHeadersKey = "X-Amz-SignedHeaders"
	amzSignatureKey     = "X-Amz-Signature"
	amzContentSHAKey    = "X-Amz-Content-Sha256"

	// amzDateFormat is the timestamp layout used by X-Amz-Date.
	amzDateFormat = "20060102T150405Z"
)

// nowFunc is overridable in tests to pin the verification clock.
var nowFunc = time.Now

// Credentials is a static access/secret key pair.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Scope is the date/region/service tuple that binds a signature to a
// signing-key derivation path. It is always parsed from the request's own
// X-Amz-Credential value, never taken from configuration.
type Scope struct {
	Date    string // YYYYMMDD
	Region  string
	Service string
}

// String renders the credential scope as used in the string to sign.
func (s Scope) String() string {
	return s.Date + "/" + s.Region + "/" + s.Service + "/" + scopeTerminator
}

// parseCredential splits an X-Amz-Credential value of the form
// <accessKey>/<date>/<region>/<service>/aws4_request.
func parseCredential(cred string) (accessKey string, scope Scope, err error) {
	parts := strings.Split(cred, "/")
	if len(parts) != 5 || parts[4] != scopeTerminator {
		return "", Scope{}, ErrMalformedRequest
	}
	for _, p := range parts[:4] {
		if strings.TrimSpace(p) == "" {
			return "", Scope{}, ErrMalformedRequest
		}
	}
	return parts[0], Scope{Date: parts[1], Region: parts[2], Service: parts[3]}, nil
}
