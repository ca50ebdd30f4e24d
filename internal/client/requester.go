package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/maxvaer/secprobe/internal/config"
)

// Request describes one call against the target.
type Request struct {
	Method  string // defaults to GET
	Path    string
	JSON    any // encoded as the request body when non-nil
	Headers map[string]string
}

// Requester wraps an HTTP client bound to a single target base URL.
type Requester struct {
	client    *http.Client
	baseURL   *url.URL
	headers   map[string]string
	userAgent string
	log       zerolog.Logger
}

// NewRequester creates a Requester from the provided options. TLS
// verification is disabled so self-signed test deployments can be probed.
func NewRequester(opts *config.Options, log zerolog.Logger) (*Requester, error) {
	base, err := url.Parse(opts.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid URL %q", opts.URL)
	}
	if base.Host == "" {
		return nil, errors.Errorf("invalid URL %q: missing host", opts.URL)
	}
	if base.Scheme == "" {
		base.Scheme = "http"
	}
	base.Path = strings.TrimRight(base.Path, "/")

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		DialContext: (&net.Dialer{
			Timeout: opts.Timeout,
		}).DialContext,
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid proxy URL %q", opts.Proxy)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}

	if !opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "secprobe/1.0"
	}

	return &Requester{
		client:    client,
		baseURL:   base,
		headers:   opts.Headers,
		userAgent: ua,
		log:       log,
	}, nil
}

// BaseURL returns the normalized target root.
func (r *Requester) BaseURL() string {
	return r.baseURL.String()
}

// Do sends the request and returns a snapshot of the response. It never
// returns nil: transport failures produce a Response with StatusCode 0, an
// empty body and Err set, so callers can treat them like any other failing
// status.
func (r *Requester) Do(ctx context.Context, in Request) *Response {
	method := in.Method
	if method == "" {
		method = http.MethodGet
	}
	targetURL := r.baseURL.String() + "/" + strings.TrimLeft(in.Path, "/")
	result := &Response{URL: targetURL, Header: http.Header{}}

	var body io.Reader
	if in.JSON != nil {
		payload, err := json.Marshal(in.JSON)
		if err != nil {
			result.Err = errors.Wrap(err, "encoding request body")
			return result
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		result.Err = err
		return result
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")
	if in.JSON != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		r.log.Debug().Err(err).Str("method", method).Str("url", targetURL).Msg("request failed")
		return result
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = errors.Wrapf(err, "reading response body for %s", in.Path)
	}

	result.StatusCode = resp.StatusCode
	result.Header = resp.Header
	result.Body = data
	result.JSON = decodeObject(data)

	r.log.Debug().
		Str("method", method).
		Str("url", targetURL).
		Int("status", result.StatusCode).
		Int("size", len(data)).
		Dur("duration", result.Duration).
		Msg("response")

	return result
}
