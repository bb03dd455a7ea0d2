package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

func hmacSHA256(key, msg []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

func hmacSHA256Hex(key, msg []byte) string {
	return hex.EncodeToString(hmacSHA256(key, msg))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// deriveSigningKey chains the four SigV4 keyed hashes:
// kDate = HMAC("AWS4"+secret, date), kRegion = HMAC(kDate, region),
// kService = HMAC(kRegion, service), kSigning = HMAC(kService, "aws4_request").
func deriveSigningKey(secret, date, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(date))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(scopeTerminator))
}

// buildStringToSign composes the final input to the signature MAC.
func buildStringToSign(amzDate string, scope Scope, canonicalRequestHash string) string {
	return algorithm + "\n" + amzDate + "\n" + scope.String() + "\n" + canonicalRequestHash
}
