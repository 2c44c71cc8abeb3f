package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"delivery/internal/metrics"
)

// Credentials is the part of the session the gateway depends on: it reads the
// token on every request and may log out on a 401. It never writes anything
// else.
type Credentials interface {
	Token() string
	// LogoutIfToken ends the session only if token is still current.
	LogoutIfToken(token string) bool
}

// Gateway is the HTTP transport shared by every backend call.
type Gateway struct {
	base   *url.URL
	client *http.Client
}

type options struct {
	client  *http.Client
	metrics *metrics.Registry
	timeout time.Duration
}

type Option func(*options)

// WithHTTPClient uses c's transport as the innermost round-tripper.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.client = c } }

func WithMetrics(m *metrics.Registry) Option { return func(o *options) { o.metrics = m } }

// WithTimeout sets a whole-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

func NewGateway(baseURL string, creds Credentials, opts ...Option) (*Gateway, error) {
	if creds == nil {
		return nil, errors.New("gateway: nil credentials")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	var next http.RoundTripper = http.DefaultTransport
	timeout := o.timeout
	if o.client != nil {
		if o.client.Transport != nil {
			next = o.client.Transport
		}
		if timeout == 0 {
			timeout = o.client.Timeout
		}
	}
	if o.metrics != nil {
		next = o.metrics.InstrumentRoundTripper(next)
	}
	t := &authTransport{next: next, creds: creds}
	if o.metrics != nil {
		t.onUnauthorized = o.metrics.Unauthorized.Inc
	}
	return &Gateway{
		base:   base,
		client: &http.Client{Transport: t, Timeout: timeout},
	}, nil
}

// authTransport attaches the bearer token and turns a 401 into a logout of
// the session that sent it. The response itself is handed back untouched.
type authTransport struct {
	next           http.RoundTripper
	creds          Credentials
	onUnauthorized func()
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok := t.creds.Token()
	if tok != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := t.next.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		if !t.creds.LogoutIfToken(tok) {
			log.Printf("401 for %s %s answered a replaced token, session kept", req.Method, req.URL.Path)
		}
		if t.onUnauthorized != nil {
			t.onUnauthorized()
		}
	}
	return resp, err
}

// Do sends in (JSON-encoded when non-nil) to path and decodes a 2xx body into
// out when out is non-nil. Non-2xx responses come back as *StatusError.
func (g *Gateway) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(method, path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
