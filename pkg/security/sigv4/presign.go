package sigv4

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PresignOptions controls presigned-URL generation.
type PresignOptions struct {
	// Endpoint is the target service, with or without scheme ("https://"
	// is assumed when absent). Required.
	Endpoint string
	// Region for the credential scope; defaults to "us-east-1".
	Region string
	// Expires is the URL validity window; defaults to one hour.
	Expires time.Duration
	// Now pins the signing time; defaults to the current time.
	Now time.Time
	// Method is the HTTP method baked into the signature; defaults to GET.
	Method string
}

func (o *PresignOptions) defaults() (scheme, host string, err error) {
	if o.Region == "" {
		o.Region = "us-east-1"
	}
	if o.Expires <= 0 {
		o.Expires = time.Hour
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Method == "" {
		o.Method = "GET"
	}
	o.Now = o.Now.UTC()
	ep := o.Endpoint
	if ep == "" {
		return "", "", fmt.Errorf("sigv4: presign: endpoint required")
	}
	if !strings.Contains(ep, "://") {
		ep = "https://" + ep
	}
	u, err := url.Parse(ep)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("sigv4: presign: invalid endpoint %q", o.Endpoint)
	}
	return u.Scheme, u.Host, nil
}

// PresignV4 builds a SigV4 query-authenticated URL for bucket/key.
func PresignV4(creds Credentials, bucket, key string, opt PresignOptions) (string, error) {
	scheme, host, err := opt.defaults()
	if err != nil {
		return "", err
	}
	scope := Scope{Date: opt.Now.Format("20060102"), Region: opt.Region, Service: "s3"}
	amzDate := opt.Now.Format(amzDateFormat)
	path := "/" + bucket + "/" + strings.TrimPrefix(key, "/")
	canonicalURI := uriEncode(path, false)

	q := url.Values{}
	q.Set(amzAlgorithmKey, algorithm)
	q.Set(amzCredentialKey, creds.AccessKey+"/"+scope.String())
	q.Set(amzDateKey, amzDate)
	q.Set(amzExpiresKey, strconv.FormatInt(int64(opt.Expires/time.Second), 10))
	q.Set(amzSignedHeadersKey, "host")

	canonReq := opt.Method + "\n" + canonicalURI + "\n" + canonicalQueryString(q) +
		"\nhost:" + host + "\n\nhost\n" + unsignedPayload
	stringToSign := buildStringToSign(amzDate, scope, sha256Hex([]byte(canonReq)))
	signingKey := deriveSigningKey(creds.SecretKey, scope.Date, scope.Region, scope.Service)
	q.Set(amzSignatureKey, hmacSHA256Hex(signingKey, []byte(stringToSign)))

	return scheme + "://" + host + canonicalURI + "?" + q.Encode(), nil
}

// PresignV2 builds a legacy Signature Version 2 URL (HMAC-SHA1 over a short
// string to sign, epoch expiry). Still accepted by several S3-compatible
// stores.
func PresignV2(creds Credentials, bucket, key string, opt PresignOptions) (string, error) {
	scheme, host, err := opt.defaults()
	if err != nil {
		return "", err
	}
	expires := opt.Now.Add(opt.Expires).Unix()
	resource := "/" + bucket + "/" + strings.TrimPrefix(key, "/")
	stringToSign := "GET\n\n\n" + strconv.FormatInt(expires, 10) + "\n" + resource

	mac := hmac.New(sha1.New, []byte(creds.SecretKey))
	mac.Write([]byte(stringToSign))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	q := url.Values{}
	q.Set("AWSAccessKeyId", creds.AccessKey)
	q.Set("Expires", strconv.FormatInt(expires, 10))
	q.Set("Signature", sig)
	return scheme + "://" + host + uriEncode(resource, false) + "?" + q.Encode(), nil
}
