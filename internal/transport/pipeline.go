package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 10 << 20
	defaultUserAgent    = "storefront-go"

	headerRequestID = "X-Request-ID"
)

// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// TokenSource supplies the current access token and performs refreshes.
//
// CurrentToken is called once per original request and must return "" when
// no live token exists. Refresh returns the new access token.
type TokenSource interface {
	CurrentToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Config configures a Pipeline.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// Hooks observe pipeline outcomes. Nil funcs are skipped.
type Hooks struct {
	RequestDone          func(method, path string, status int, d time.Duration, err error)
	RetriedAfterRefresh  func()
	UnauthorizedSurfaced func()
}

// Request describes one API call. Body is JSON-encoded unless it is []byte.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Body     any
	Header   http.Header
	SkipAuth bool
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Envelope is the API's standard response wrapper.
type Envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Envelope parses the body as the standard wrapper.
func (r *Response) Envelope() (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Decode unmarshals the envelope's data into v. Bodies without a data field
// are decoded whole.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return errors.New("decode response: empty body")
	}
	var env Envelope
	if err := json.Unmarshal(r.Body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, v); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Result is the outcome of Pipeline.Do. Err is nil only for a successful
// response. Response may be set alongside Err when the server answered.
type Result struct {
	Response *Response
	Err      error
	// Attempts is 2 when the request was re-issued after a refresh.
	Attempts int
	// Refreshed reports that a 401 triggered a successful refresh.
	Refreshed bool
	// Authenticated reports whether the first attempt carried a token.
	Authenticated bool
}

// Decode returns Err, or decodes the response into v.
func (r Result) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if r.Response == nil {
		return errors.New("decode: no response")
	}
	return r.Response.Decode(v)
}

// StatusCode returns the final HTTP status, or 0 when none was received.
func (r Result) StatusCode() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// Pipeline issues API requests.
type Pipeline struct {
	base   *url.URL
	cfg    Config
	client *http.Client
	tokens TokenSource
	logger *zap.Logger
	hooks  Hooks
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithHooks(h Hooks) Option {
	return func(p *Pipeline) { p.hooks = h }
}

// New builds a Pipeline. tokens may be nil for an unauthenticated client.
func New(cfg Config, client *http.Client, tokens TokenSource, opts ...Option) (*Pipeline, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("transport: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transport: base url %q must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if client == nil {
		client = &http.Client{}
	}
	p := &Pipeline{
		base:   base,
		cfg:    cfg,
		client: client,
		tokens: tokens,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Do sends req. A 401 on a request that carried a token triggers one
// refresh; when it succeeds the request is re-issued once with the new
// token. Refresh failure or a second 401 yields an error matching
// ErrUnauthorized.
func (p *Pipeline) Do(ctx context.Context, req Request) Result {
	start := time.Now()
	res := p.do(ctx, req)
	if p.hooks.RequestDone != nil {
		p.hooks.RequestDone(req.Method, req.Path, res.StatusCode(), time.Since(start), res.Err)
	}
	return res
}

func (p *Pipeline) do(ctx context.Context, req Request) Result {
	body, err := encodeBody(req.Body)
	if err != nil {
		return Result{Err: err}
	}

	token := ""
	if !req.SkipAuth && p.tokens != nil {
		token, err = p.tokens.CurrentToken(ctx)
		if err != nil {
			p.logger.Warn("reading access token failed; sending unauthenticated",
				zap.String("path", req.Path), zap.Error(err))
			token = ""
		}
	}

	res := Result{Attempts: 1, Authenticated: token != ""}
	resp, err := p.send(ctx, req, body, token, 1)
	if err != nil {
		res.Err = err
		return res
	}
	res.Response = resp
	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		res.Err = p.check(req, resp)
		return res
	}

	fresh, err := p.tokens.Refresh(ctx)
	if err != nil {
		p.logger.Info("refresh after 401 failed", zap.String("path", req.Path), zap.Error(err))
		p.surfaceUnauthorized()
		res.Err = fmt.Errorf("%w: %s %s: %w", ErrUnauthorized, req.Method, req.Path, err)
		return res
	}
	res.Refreshed = true
	if p.hooks.RetriedAfterRefresh != nil {
		p.hooks.RetriedAfterRefresh()
	}

	res.Attempts = 2
	resp, err = p.send(ctx, req, body, fresh, 2)
	if err != nil {
		res.Response = nil
		res.Err = err
		return res
	}
	res.Response = resp
	if resp.StatusCode == http.StatusUnauthorized {
		p.surfaceUnauthorized()
	}
	res.Err = p.check(req, resp)
	return res
}

func (p *Pipeline) surfaceUnauthorized() {
	if p.hooks.UnauthorizedSurfaced != nil {
		p.hooks.UnauthorizedSurfaced()
	}
}

func (p *Pipeline) send(ctx context.Context, req Request, body []byte, token string, attempt int) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	u := p.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	hreq, err := http.NewRequestWithContext(actx, req.Method, u.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if body != nil && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if hreq.Header.Get("Accept") == "" {
		hreq.Header.Set("Accept", "application/json")
	}
	hreq.Header.Set("User-Agent", p.cfg.UserAgent)
	hreq.Header.Set(headerRequestID, RequestIDFromContext(ctx))
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	hresp, err := p.client.Do(hreq)
	if err != nil {
		err = p.classify(ctx, actx, req, err)
		p.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(hresp.Body, p.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, p.classify(ctx, actx, req, err)
	}
	if int64(len(data)) > p.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrBodyTooLarge)
	}

	p.logger.Debug("request done",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", hresp.StatusCode),
		zap.Int("attempt", attempt),
		zap.Bool("auth", token != ""),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Response{StatusCode: hresp.StatusCode, Header: hresp.Header, Body: data}, nil
}

// classify maps a client error onto the taxonomy. Cancellation of the
// caller's context is passed through untouched.
func (p *Pipeline) classify(parent, attempt context.Context, req Request, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrTimeout)
	}
	return fmt.Errorf("%s %s: %w: %w", req.Method, req.Path, ErrNetwork, err)
}

// check turns non-success responses into *APIError.
func (p *Pipeline) check(req Request, resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		env, err := resp.Envelope()
		if err == nil && env.Status != "" && !strings.EqualFold(env.Status, "success") {
			return &APIError{StatusCode: resp.StatusCode, Message: env.Message, Method: req.Method, Path: req.Path}
		}
		return nil
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    serverMessage(resp.Body),
		Method:     req.Method,
		Path:       req.Path,
	}
}

func serverMessage(body []byte) string {
	var msg struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return ""
	}
	if msg.Message != "" {
		return msg.Message
	}
	return msg.Error
}

func encodeBody(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("transport: encode body: %w", err)
		}
		return data, nil
	}
}
