package sigv4

import (
	"encoding/hex"
	"testing"
)

// Vector from the AWS SigV4 documentation's signing key example.
func TestDeriveSigningKey_ReferenceVector(t *testing.T) {
	key := deriveSigningKey("wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY", "20120215", "us-east-1", "iam")
	want := "f4780e2d9f65fa895f9c67b32ce1baf0b0d8a43505a000a1a9e090d414db404d"
	if got := hex.EncodeToString(key); got != want {
		t.Fatalf("deriveSigningKey vector mismatch:\ngot  %s\nwant %s", got, want)
	}
}

func TestDeriveSigningKey_Deterministic(t *testing.T) {
	a := deriveSigningKey("secret", "20241201", "us-east-1", "s3")
	b := deriveSigningKey("secret", "20241201", "us-east-1", "s3")
	if hex.EncodeToString(a) != hex.EncodeToString(b) {
		t.Fatal("signing key derivation must be deterministic")
	}
	c := deriveSigningKey("secret", "20241202", "us-east-1", "s3")
	if hex.EncodeToString(a) == hex.EncodeToString(c) {
		t.Fatal("different dates must derive different keys")
	}
}

func TestSHA256Hex_EmptyString(t *testing.T) {
	// Well-known SHA-256 of the empty string.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := sha256Hex(nil); got != want {
		t.Fatalf("sha256Hex(nil) = %s, want %s", got, want)
	}
}

func TestBuildStringToSign(t *testing.T) {
	scope := Scope{Date: "20241201", Region: "us-east-1", Service: "s3"}
	got := buildStringToSign("20241201T120000Z", scope, "abc123")
	want := "AWS4-HMAC-SHA256\n20241201T120000Z\n20241201/us-east-1/s3/aws4_request\nabc123"
	if got != want {
		t.Fatalf("string to sign mismatch:\ngot  %q\nwant %q", got, want)
	}
}
