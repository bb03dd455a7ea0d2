package sigv4

import (
	"net/http"
)

// ResignPresignedRequest rewrites a validated presigned request so that it
// authenticates against the origin credential pair and origin host: the
// access key inside X-Amz-Credential is replaced, the signature is recomputed
// against originHost with origin.SecretKey, and X-Amz-Signature is updated in
// the query string. Every other query parameter, header, and the body are
// left untouched. The signing scope (date/region/service) is carried over
// from the incoming request.
func ResignPresignedRequest(r *http.Request, origin Credentials, originHost string) error {
	pv, err := parsePresigned(r)
	if err != nil {
		return err
	}
	pv.AccessKey = origin.AccessKey

	q := r.URL.Query()
	q.Set(amzCredentialKey, origin.AccessKey+"/"+pv.Scope.String())
	q.Del(amzSignatureKey)
	r.URL.RawQuery = q.Encode()

	sig := computeSignature(r, originHost, origin.SecretKey, pv)
	q.Set(amzSignatureKey, sig)
	r.URL.RawQuery = q.Encode()
	return nil
}
