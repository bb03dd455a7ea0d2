package sigv4

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// uriEncode percent-encodes s per RFC 3986 as SigV4 requires: unreserved
// characters (A-Z, a-z, 0-9, '-', '_', '.', '~') stay literal, everything
// else becomes %XX with uppercase hex. Space is %20, never '+'. When
// encodeSlash is false, '/' is kept literal (object-key paths).
func uriEncode(s string, encodeSlash bool) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xf])
		}
	}
	return b.String()
}

// canonicalQueryString builds the SigV4 canonical query string from decoded
// query values: every parameter except X-Amz-Signature is re-encoded and
// sorted by encoded key, then by encoded value for repeated keys. Sorting the
// joined "key=value" strings instead would flip the order of prefix-related
// keys ("tag" after "tag-set", since '-' sorts below '='). The signature
// parameter is excluded from the hashed string but stays on the wire.
func canonicalQueryString(q url.Values) string {
	keys := make([]string, 0, len(q))
	encoded := make(map[string][]string, len(q))
	for key, values := range q {
		if key == amzSignatureKey {
			continue
		}
		ek := uriEncode(key, true)
		evs := make([]string, len(values))
		for i, v := range values {
			evs[i] = uriEncode(v, true)
		}
		sort.Strings(evs)
		encoded[ek] = evs
		keys = append(keys, ek)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, ek := range keys {
		for j, ev := range encoded[ek] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(ek)
			b.WriteByte('=')
			b.WriteString(ev)
		}
	}
	return b.String()
}

// canonicalHeadersAndList returns the canonical headers block and the sorted
// lower-cased signed header list. The host header always carries the supplied
// target host so that verification and re-signing each bind to exactly one
// credential pair's host.
func canonicalHeadersAndList(r *http.Request, host string, signed []string) (string, []string) {
	list := make([]string, 0, len(signed))
	for _, h := range signed {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			list = append(list, h)
		}
	}
	sort.Strings(list)

	var b strings.Builder
	for _, h := range list {
		b.WriteString(h)
		b.WriteByte(':')
		if h == "host" {
			b.WriteString(host)
		} else {
			b.WriteString(trimHeaderValue(strings.Join(r.Header.Values(http.CanonicalHeaderKey(h)), ",")))
		}
		b.WriteByte('\n')
	}
	return b.String(), list
}

// trimHeaderValue trims leading/trailing whitespace and collapses inner runs
// of spaces, as SigV4 canonicalization requires.
func trimHeaderValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// buildCanonicalRequest assembles the canonical request string for r against
// the given target host. Byte-identical output to the reference algorithm is
// required or signatures will never match.
func buildCanonicalRequest(r *http.Request, host string, signed []string, payloadHash string) string {
	headers, list := canonicalHeadersAndList(r, host, signed)
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte('\n')
	b.WriteString(escapedPath(r.URL))
	b.WriteByte('\n')
	b.WriteString(canonicalQueryString(r.URL.Query()))
	b.WriteByte('\n')
	b.WriteString(headers)
	b.WriteByte('\n')
	b.WriteString(strings.Join(list, ";"))
	b.WriteByte('\n')
	b.WriteString(payloadHash)
	return b.String()
}

func escapedPath(u *url.URL) string {
	if p := u.EscapedPath(); p != "" {
		return p
	}
	return "/"
}
