package sigv4

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// presignedValues carries the signing parameters extracted from a presigned
// request's query string.
type presignedValues struct {
	AccessKey     string
	Scope         Scope
	AmzDate       string
	Expires       time.Duration // zero when X-Amz-Expires is absent
	SignedHeaders []string
	Signature     string
	PayloadHash   string
}

// parsePresigned extracts and validates the required presigned-URL
// parameters. Any missing required parameter or unparseable credential scope
// yields ErrMalformedRequest.
func parsePresigned(r *http.Request) (*presignedValues, error) {
	q := r.URL.Query()
	if q.Get(amzAlgorithmKey) != algorithm {
		return nil, ErrMalformedRequest
	}
	for _, k := range []string{amzCredentialKey, amzDateKey, amzSignedHeadersKey, amzSignatureKey} {
		if q.Get(k) == "" {
			return nil, ErrMalformedRequest
		}
	}
	accessKey, scope, err := parseCredential(q.Get(amzCredentialKey))
	if err != nil {
		return nil, err
	}
	pv := &presignedValues{
		AccessKey:     accessKey,
		Scope:         scope,
		AmzDate:       q.Get(amzDateKey),
		SignedHeaders: strings.Split(q.Get(amzSignedHeadersKey), ";"),
		Signature:     q.Get(amzSignatureKey),
		PayloadHash:   unsignedPayload,
	}
	if v := q.Get(amzContentSHAKey); v != "" {
		pv.PayloadHash = v
	}
	if v := q.Get(amzExpiresKey); v != "" {
		// A present X-Amz-Expires must be a positive second count; zero
		// would otherwise read as "no expiry" further down.
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil || secs <= 0 {
			return nil, ErrMalformedRequest
		}
		pv.Expires = time.Duration(secs) * time.Second
	}
	return pv, nil
}

// computeSignature runs the full canonical-request → string-to-sign →
// signature pipeline for r against the given host and secret. Deterministic:
// identical inputs always produce the identical hex signature.
func computeSignature(r *http.Request, host, secret string, pv *presignedValues) string {
	canonReq := buildCanonicalRequest(r, host, pv.SignedHeaders, pv.PayloadHash)
	stringToSign := buildStringToSign(pv.AmzDate, pv.Scope, sha256Hex([]byte(canonReq)))
	key := deriveSigningKey(secret, pv.Scope.Date, pv.Scope.Region, pv.Scope.Service)
	return hmacSHA256Hex(key, []byte(stringToSign))
}

// VerifyPresignedRequest validates a presigned request against the
// client-facing credential pair.
//
// The access key must equal creds.AccessKey (checked before any signature
// math), the request must not be past X-Amz-Date + X-Amz-Expires, and the
// presented X-Amz-Signature must equal the signature recomputed with the
// request's own Host header and creds.SecretKey. Signature comparison is
// constant-time.
func VerifyPresignedRequest(r *http.Request, creds Credentials) error {
	pv, err := parsePresigned(r)
	if err != nil {
		return err
	}
	if pv.AccessKey != creds.AccessKey {
		return ErrAccessKeyMismatch
	}
	signedAt, err := time.Parse(amzDateFormat, pv.AmzDate)
	if err != nil {
		return ErrMalformedRequest
	}
	if pv.Expires > 0 && nowFunc().UTC().After(signedAt.Add(pv.Expires)) {
		return ErrRequestExpired
	}
	expected := computeSignature(r, r.Host, creds.SecretKey, pv)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(pv.Signature))) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}
