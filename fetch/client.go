// Package fetch provides the HTTP client used by the HTTP-only probe
// channels: Chrome TLS fingerprint via utls, browser-like default
// headers, bounded body reads, and a per-host politeness limiter so
// parallel channels do not hammer the target.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/time/rate"
)

// DefaultUserAgent is the Chrome UA sent when the target context does
// not override it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBody caps response body reads.
const maxBody = 10 << 20 // 10 MB

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only, computed once and reused. The h2 entry is removed so
// the server never negotiates HTTP/2, which Go's http.Transport cannot
// frame over a utls connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Request describes one probe fetch.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string

	// Timeout bounds this request only; zero means the client default.
	Timeout time.Duration
}

// Response is the decoded result of a probe fetch. Body is fully read
// (capped) so channels can classify it without holding a connection.
type Response struct {
	StatusCode  int
	Header      http.Header
	Body        []byte
	ContentType string
	FinalURL    string
}

// Client issues probe requests. Safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	defaultTimeout time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New creates a Client. requestTimeout is the default per-request
// deadline; rps/burst shape the per-host politeness limiter.
func New(requestTimeout time.Duration, rps float64, burst int) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	if rps <= 0 {
		rps = 4
	}
	if burst <= 0 {
		burst = 4
	}
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("fetch: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		defaultTimeout: requestTimeout,
		limiters:       make(map[string]*rate.Limiter),
		rps:            rate.Limit(rps),
		burst:          burst,
	}
}

// Do issues the request with browser-like default headers. Explicit
// headers in the request override the defaults. The call waits on the
// target host's politeness limiter before dialing.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}

	httpReq.Header.Set("User-Agent", DefaultUserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "identity")
	httpReq.Header.Set("Cache-Control", "no-cache")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if err := c.limiter(httpReq.URL.Hostname()).Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch: rate limit wait: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// limiter returns (creating if needed) the politeness limiter for a host.
func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.rps, c.burst)
		c.limiters[host] = l
	}
	return l
}
