// Package transport issues requests against the ETM engine's public API and
// validates its responses.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production engine API root.
const DefaultBaseURL = "https://engine.energytransitionmodel.com/api/v3"

// defaultTimeout bounds a single round-trip when no client is supplied.
const defaultTimeout = 60 * time.Second

// Decode selects how a response body is consumed and which content type is
// requested.
type Decode int

const (
	DecodeJSON    Decode = iota // application/json mapping or list.
	DecodeTabular               // text/csv bytes.
	DecodeText                  // text/html or plain text.
)

func (d Decode) String() string {
	switch d {
	case DecodeTabular:
		return "tabular"
	case DecodeText:
		return "text"
	default:
		return "json"
	}
}

// accept returns the Accept header for the decode mode.
func (d Decode) accept() string {
	switch d {
	case DecodeTabular:
		return "text/csv"
	case DecodeText:
		return "text/html"
	default:
		return "application/json"
	}
}

// Request describes a single API call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any // JSON-encoded when non-nil, or a multipart form for a File.
	Header http.Header
	Decode Decode
}

// File is a request body sent as a multipart form holding one file.
type File struct {
	Field string // Form field name; "file" when empty.
	Name  string // File name reported to the engine.
	Data  []byte
}

// encode returns the multipart form and its content type.
func (f File) encode() ([]byte, string, error) {
	field := f.Field
	if field == "" {
		field = "file"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, f.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// encodeBody serializes a request body and returns its content type.
func encodeBody(body any) ([]byte, string, error) {
	if f, ok := body.(File); ok {
		return f.encode()
	}
	data, err := json.Marshal(body)
	return data, "application/json", err
}

// Response holds a validated response body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string.
func (r Response) Text() string { return string(r.Body) }

// Reader returns a reader over the body, for tabular decoding.
func (r Response) Reader() io.Reader { return bytes.NewReader(r.Body) }

// JSON decodes the body into v.
func (r Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("transport: decoding json: %w", err)
	}
	return nil
}

// Doer is the contract every other package depends on for I/O.
type Doer interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// Verify Client satisfies Doer at compile time.
var _ Doer = (*Client)(nil)

// Client performs requests against one engine base URL.
// It holds no per-scenario state and may be shared.
type Client struct {
	baseURL    string
	token      string
	header     http.Header
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the engine API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithBeta switches the base URL to its beta-engine variant.
// Apply it after WithBaseURL.
func WithBeta(beta bool) Option {
	return func(c *Client) {
		if beta {
			c.baseURL = BetaURL(c.baseURL)
		}
	}
}

// WithToken sends a personal access token as a bearer Authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the round-trip timeout on the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

// New creates a Client for the production engine unless options say otherwise.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		header:     make(http.Header),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BetaURL returns the beta variant of an engine URL by substituting
// "engine" with "beta-engine" in the host. URLs already pointing at a beta
// host are returned unchanged.
func BetaURL(base string) string {
	u, err := url.Parse(base)
	if err != nil || strings.Contains(u.Host, "beta-engine") {
		return base
	}
	u.Host = strings.Replace(u.Host, "engine", "beta-engine", 1)
	return u.String()
}

// BaseURL returns the API root requests are issued against.
func (c *Client) BaseURL() string { return c.baseURL }

// URL joins the base URL with path and query.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do performs the request and validates the response status.
// Any non-2xx status is returned as a *RequestError.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.URL(req.Path, req.Query)

	var (
		body        io.Reader
		contentType string
	)
	if req.Body != nil {
		data, ct, err := encodeBody(req.Body)
		if err != nil {
			return Response{}, fmt.Errorf("transport: encoding %s %s body: %w", method, target, err)
		}
		body, contentType = bytes.NewReader(data), ct
	}

	hreq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{}, fmt.Errorf("transport: building %s %s: %w", method, target, err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		hreq.Header.Del(k)
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Accept", req.Decode.accept())
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return Response{}, fmt.Errorf("transport: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("transport: reading %s %s: %w", method, target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, newRequestError(method, target, resp.StatusCode, data)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values, decode Decode) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Decode: decode})
}

// Post issues a POST request with a JSON body and JSON response.
func (c *Client) Post(ctx context.Context, path string, body any) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with a JSON body and JSON response.
func (c *Client) Put(ctx context.Context, path string, body any) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Upload issues a PUT request carrying f as a multipart form.
func (c *Client) Upload(ctx context.Context, path string, f File) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: f})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Decode: DecodeText})
}
