package sigv4

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// A request verified against the client pair, then re-signed with the origin
// pair, must independently verify against the origin pair and origin host.
func TestResignPresignedRequest_CrossCheckRoundTrip(t *testing.T) {
	client := Credentials{AccessKey: "CLIENTKEY", SecretKey: "clientsecret"}
	origin := Credentials{AccessKey: "ORIGINKEY", SecretKey: "originsecret"}
	signedAt := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

	r := presignedRequest(t, client, "s3.mydomain.com", "/bucket/object.jpg", signedAt, time.Hour)

	cleanup := withFixedNow(t, signedAt.Add(time.Minute))
	defer cleanup()

	if err := VerifyPresignedRequest(r, client); err != nil {
		t.Fatalf("client verification: %v", err)
	}
	if err := ResignPresignedRequest(r, origin, "s3.example.com"); err != nil {
		t.Fatalf("resign: %v", err)
	}

	cred := r.URL.Query().Get("X-Amz-Credential")
	if !strings.HasPrefix(cred, origin.AccessKey+"/") {
		t.Fatalf("credential not rewritten: %q", cred)
	}
	if !strings.HasSuffix(cred, "/aws4_request") {
		t.Fatalf("credential scope lost: %q", cred)
	}

	// Rebuild the request as the origin would see it.
	fwd := httptest.NewRequest(http.MethodGet, "https://s3.example.com/bucket/object.jpg?"+r.URL.RawQuery, nil)
	if err := VerifyPresignedRequest(fwd, origin); err != nil {
		t.Fatalf("origin verification after resign: %v", err)
	}
}

func TestResignPresignedRequest_PreservesOtherParameters(t *testing.T) {
	client := Credentials{AccessKey: "CLIENTKEY", SecretKey: "clientsecret"}
	origin := Credentials{AccessKey: "ORIGINKEY", SecretKey: "originsecret"}
	signedAt := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

	r := presignedRequest(t, client, "s3.mydomain.com", "/bucket/object.jpg", signedAt, time.Hour)
	before := r.URL.Query()

	if err := ResignPresignedRequest(r, origin, "s3.example.com"); err != nil {
		t.Fatalf("resign: %v", err)
	}
	after := r.URL.Query()

	for key := range before {
		switch key {
		case "X-Amz-Credential", "X-Amz-Signature":
			if before.Get(key) == after.Get(key) {
				t.Fatalf("%s must change on resign", key)
			}
		default:
			if before.Get(key) != after.Get(key) {
				t.Fatalf("%s changed on resign: %q -> %q", key, before.Get(key), after.Get(key))
			}
		}
	}
}

func TestResignPresignedRequest_KeepsScopeFromRequest(t *testing.T) {
	client := Credentials{AccessKey: "CLIENTKEY", SecretKey: "clientsecret"}
	origin := Credentials{AccessKey: "ORIGINKEY", SecretKey: "originsecret"}
	signedAt := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

	r := presignedRequest(t, client, "s3.mydomain.com", "/bucket/obj", signedAt, time.Hour)
	if err := ResignPresignedRequest(r, origin, "s3.example.com"); err != nil {
		t.Fatalf("resign: %v", err)
	}
	if got, want := r.URL.Query().Get("X-Amz-Credential"), "ORIGINKEY/20241201/us-east-1/s3/aws4_request"; got != want {
		t.Fatalf("credential = %q, want %q", got, want)
	}
}

func TestResignPresignedRequest_MalformedQuery(t *testing.T) {
	origin := Credentials{AccessKey: "ORIGINKEY", SecretKey: "originsecret"}
	r := httptest.NewRequest(http.MethodGet, "http://s3.mydomain.com/bucket/obj?X-Amz-Algorithm=AWS4-HMAC-SHA256", nil)
	if err := ResignPresignedRequest(r, origin, "s3.example.com"); err == nil {
		t.Fatal("expected error for malformed query")
	}
}
