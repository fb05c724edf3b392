package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	openapiTypes "github.com/oapi-codegen/runtime/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"

	"github.com/lhelper/liblibai-client/pkg/auth"
)

// Method is an HTTP method supported by the API.
type Method string

// Supported methods.
const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// ParseMethod converts s to a Method, ignoring case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(s))
	if !m.valid() {
		return "", &InvalidArgumentError{Argument: "method", Value: s, Message: "unsupported request method"}
	}
	return m, nil
}

func (m Method) valid() bool {
	return m == MethodGet || m == MethodPost
}

// File is a binary attachment sent as a multipart part named Field.
type File struct {
	Field string
	File  openapiTypes.File
}

// NewFile wraps data as an attachment.
func NewFile(field, filename string, data []byte) File {
	var f openapiTypes.File
	f.InitFromBytes(data, filename)
	return File{Field: field, File: f}
}

// FileFromPath reads path into an attachment named after its base name.
func FileFromPath(field, path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, &InvalidArgumentError{Argument: "file", Value: path, Message: "cannot read file", Err: err}
	}
	return NewFile(field, filepath.Base(path), data), nil
}

// Client issues signed requests against the liblibAI API.
//
// A Client is safe for concurrent use by multiple goroutines. SetProxy
// takes effect for requests started after it returns.
type Client struct {
	baseURL    *url.URL
	signer     *auth.Signer
	opts       *Options
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.RWMutex
	proxy string
}

// New creates a client that signs every request with signer.
func New(signer *auth.Signer, opts ...Option) (*Client, error) {
	if signer == nil {
		return nil, errors.New("signer cannot be nil")
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	// Validate options
	if options.baseURL == "" {
		return nil, errors.New("baseURL cannot be empty")
	}
	if options.timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}
	if options.rateLimit <= 0 {
		return nil, errors.New("rate limit must be positive")
	}

	base, err := url.Parse(options.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("baseURL must be absolute: %q", options.baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		baseURL: base,
		signer:  signer,
		opts:    options,
		proxy:   options.proxy,
	}

	rt := options.transport
	if rt == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.Proxy = c.proxyURL
		rt = t
	}
	if options.metrics != nil {
		rt = options.metrics.InstrumentRoundTripper(rt)
	}
	if options.tracing {
		rt = otelhttp.NewTransport(rt)
	}
	c.httpClient = &http.Client{
		Timeout:   options.timeout,
		Transport: rt,
	}

	if options.rateLimit != rate.Inf {
		burst := options.rateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(options.rateLimit, burst)
	}

	return c, nil
}

// Signer returns the signer used for every request.
func (c *Client) Signer() *auth.Signer {
	return c.signer
}

// BaseURL returns the API root endpoints are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetProxy routes HTTP and HTTPS traffic through proxy. An empty string
// disables proxying. The value is not validated here; a malformed proxy
// makes the next request fail with an APIError.
func (c *Client) SetProxy(proxy string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxy = proxy
}

// Proxy returns the current proxy, or "".
func (c *Client) Proxy() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.proxy
}

func (c *Client) proxyURL(_ *http.Request) (*url.URL, error) {
	proxy := c.Proxy()
	if proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", proxy, err)
	}
	return u, nil
}

// Request signs params and sends one request to endpoint.
//
// GET requests carry only the signed query. POST requests also carry body
// encoded as JSON, or a multipart form when files are given: the JSON body
// goes into a part named "json" followed by one part per file. The
// signature covers the query parameters only.
//
// Errors are *InvalidArgumentError for a bad method or endpoint,
// *auth.ConfigurationError when keys are missing and *APIError for any
// transport or HTTP failure.
func (c *Client) Request(ctx context.Context, method Method, endpoint string, params auth.Params, body any, files ...File) (Response, error) {
	if !method.valid() {
		return nil, &InvalidArgumentError{Argument: "method", Value: string(method), Message: "unsupported request method"}
	}

	ref, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	target := c.baseURL.ResolveReference(ref)
	display := target.String()

	var (
		reader      io.Reader
		contentType string
	)
	if method == MethodPost {
		reader, contentType, err = encodeBody(body, files)
		if err != nil {
			return nil, &InvalidArgumentError{Argument: "body", Message: "cannot encode request body", Err: err}
		}
	}

	// The signed Timestamp must not age while waiting for a token.
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &APIError{Method: method, URL: display, Err: err}
		}
	}

	signed, err := c.signer.Sign(params)
	if err != nil {
		return nil, err
	}
	target.RawQuery = signed.Values().Encode()

	req, err := http.NewRequestWithContext(ctx, string(method), target.String(), reader)
	if err != nil {
		return nil, &APIError{Method: method, URL: display, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.opts.userAgent != "" {
		req.Header.Set("User-Agent", c.opts.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Method: method, URL: display, Err: redactURLError(err, display)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Method: method, URL: display, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	klog.V(4).InfoS("API request completed", "method", method, "url", display, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Method:     method,
			URL:        display,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(data),
			Err:        fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
		}
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &APIError{
			Method:     method,
			URL:        display,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(data),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return out, nil
}

// parseEndpoint accepts only a relative path below the base URL. Absolute
// or rooted references would send the signed credentials elsewhere, and
// query strings belong in params where they are signed.
func parseEndpoint(endpoint string) (*url.URL, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, &InvalidArgumentError{Argument: "endpoint", Value: endpoint, Message: "cannot parse endpoint", Err: err}
	}
	switch {
	case endpoint == "":
		return nil, &InvalidArgumentError{Argument: "endpoint", Value: endpoint, Message: "endpoint is empty"}
	case ref.Scheme != "" || ref.Host != "" || ref.User != nil:
		return nil, &InvalidArgumentError{Argument: "endpoint", Value: endpoint, Message: "endpoint must be relative to the base URL"}
	case strings.HasPrefix(ref.Path, "/"):
		return nil, &InvalidArgumentError{Argument: "endpoint", Value: endpoint, Message: "endpoint must not start with /"}
	case strings.Contains(endpoint, "?") || ref.Fragment != "":
		return nil, &InvalidArgumentError{Argument: "endpoint", Value: endpoint, Message: "endpoint must not carry a query or fragment; pass params instead"}
	}
	return ref, nil
}

func encodeBody(body any, files []File) (io.Reader, string, error) {
	if len(files) == 0 {
		if body == nil {
			return nil, "", nil
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="json"`)
		h.Set("Content-Type", "application/json")
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}

	for _, f := range files {
		if f.Field == "" {
			return nil, "", errors.New("file field name cannot be empty")
		}
		data, err := f.File.Bytes()
		if err != nil {
			return nil, "", fmt.Errorf("read attachment %s: %w", f.Field, err)
		}
		part, err := w.CreateFormFile(f.Field, f.File.Filename())
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// redactURLError strips the signed query from *url.Error messages so
// credentials and signatures do not leak into logs.
func redactURLError(err error, display string) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: display, Err: ue.Err}
	}
	return err
}
