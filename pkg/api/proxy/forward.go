package proxy

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/salehi/s3proxy/pkg/security/sigv4"
)

// relayBufferSize bounds the chunk size used on both body legs so memory use
// stays constant regardless of object size.
const relayBufferSize = 32 * 1024

// hopHeaders are connection-scoped and must not cross the proxy.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// forward re-signs the validated request for the origin and relays the
// exchange. The inbound body streams to the origin and the origin response
// streams back; neither leg buffers the full payload. The outbound request
// carries the inbound context, so a client disconnect cancels the upstream
// call.
func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	out := r.Clone(r.Context())
	out.URL.Scheme = s.opt.OriginScheme
	out.URL.Host = s.opt.OriginHost
	out.Host = s.opt.OriginHost
	out.RequestURI = ""
	out.Body = r.Body
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}

	var sent *countingReadCloser
	if out.Body != nil && out.Body != http.NoBody {
		sent = &countingReadCloser{rc: out.Body}
		out.Body = sent
	}

	if err := sigv4.ResignPresignedRequest(out, s.opt.Origin, s.opt.OriginHost); err != nil {
		// parsePresigned already succeeded during verification; reaching
		// this means the query was mutated in between.
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.client.Do(out)
	if err != nil {
		if s.obs != nil {
			s.obs.ObserveUpstreamError("unreachable")
		}
		slog.Error("origin request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("origin", s.opt.OriginHost),
			slog.String("error", err.Error()),
		)
		writeJSONError(w, http.StatusBadGateway, "origin unreachable")
		return
	}
	defer resp.Body.Close()

	// The transport has fully consumed the request body by the time Do
	// returns, so the upstream leg count is final here.
	if sent != nil && s.obs != nil {
		s.obs.ObserveForwardedBytes("upstream", sent.n)
	}

	// Origin 4xx/5xx are not proxy errors; status, headers and body are
	// relayed verbatim.
	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	n, err := relay(w, resp.Body)
	if s.obs != nil {
		s.obs.ObserveForwardedBytes("downstream", n)
	}
	if err != nil {
		// Mid-stream failure: status already sent, nothing else to do.
		slog.Warn("response relay interrupted",
			slog.String("path", r.URL.Path),
			slog.Int64("bytes", n),
			slog.String("error", err.Error()),
		)
	}
}

// countingReadCloser tracks how many body bytes the transport pulled from
// the client on the upstream leg.
type countingReadCloser struct {
	rc io.ReadCloser
	n  int64
}

func (c *countingReadCloser) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReadCloser) Close() error { return c.rc.Close() }

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		if isHopHeader(k) {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if http.CanonicalHeaderKey(name) == h {
			return true
		}
	}
	return false
}

// relay copies src to dst through a fixed-size buffer.
func relay(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, relayBufferSize)
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw < nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			return written, rerr
		}
	}
}
