package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	mu         sync.Mutex
	current    string
	next       string
	refreshErr error
	refreshes  int
}

func (f *fakeTokens) CurrentToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeTokens) Refresh(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.current = f.next
	return f.next, nil
}

func newPipeline(t *testing.T, h http.HandlerFunc, tokens TokenSource, opts ...Option) *Pipeline {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := New(Config{BaseURL: srv.URL, Timeout: time.Second}, srv.Client(), tokens, opts...)
	require.NoError(t, err)
	return p
}

func TestAttachesLiveToken(t *testing.T) {
	var got string
	p := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"status":"success","data":{"name":"Seeds"}}`)
	}, &fakeTokens{current: "tok-1"})

	res := p.Do(context.Background(), Request{Method: http.MethodGet, Path: "/user/categories"})
	require.NoError(t, res.Err)
	assert.Equal(t, "Bearer tok-1", got)
	assert.True(t, res.Authenticated)

	var out struct{ Name string }
	require.NoError(t, res.Decode(&out))
	assert.Equal(t, "Seeds", out.Name)
}

func TestNoTokenSendsUnauthenticated(t *testing.T) {
	var got string
	p := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}, &fakeTokens{})

	tokens := p.tokens.(*fakeTokens)
	res := p.Do(context.Background(), Request{Method: http.MethodGet, Path: "/user/cart"})
	assert.Empty(t, got)
	assert.False(t, res.Authenticated)
	assert.True(t, errors.Is(res.Err, ErrUnauthorized))
	assert.Equal(t, 0, tokens.refreshes, "unauthenticated 401 must not refresh")
	assert.Equal(t, 1, res.Attempts)
}

func TestRetriesOnceAfterRefresh(t *testing.T) {
	var calls atomic.Int32
	var seen []string
	var mu sync.Mutex
	p := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"status":"success","data":[]}`)
	}, &fakeTokens{current: "stale", next: "fresh"})

	var retried int
	p.hooks.RetriedAfterRefresh = func() { retried++ }

	res := p.Do(context.Background(), Request{Method: http.MethodGet, Path: "/user/cart"})
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.True(t, res.Refreshed)
	assert.Equal(t, 1, retried)
	assert.Equal(t, []string{"Bearer stale", "Bearer fresh"}, seen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSecondUnauthorizedIsSurfaced(t *testing.T) {
	var calls atomic.Int32
	tokens := &fakeTokens{current: "a", next: "b"}
	p := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Invalid token"}`)
	}, tokens)

	var surfaced int
	p.hooks.UnauthorizedSurfaced = func() { surfaced++ }

	res := p.Do(context.Background(), Request{Method: http.MethodGet, Path: "/user/orders"})
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, ErrUnauthorized))
	assert.Equal(t, 1, tokens.refreshes)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, surfaced)
	assert.Equal(t, "Invalid token", res.Err.(*APIError).UserMessage())
}

func TestRefreshFailureSurfacesUnauthorized(t *testing.T) {
	var calls atomic.Int32
	refreshErr := errors.New("refresh rejected")
	tokens := &fakeTokens{current: "a", refreshErr: refreshErr}
	p := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}, tokens)

	res := p.Do(context.Background(), Request{Method: http.MethodGet, Path: "/user/orders"})
	assert.True(t, errors.Is(res.Err, ErrUnauthorized))
	assert.True(t, errors.Is(res.Err, refreshErr))
	assert.Equal(t, int32(1), calls.Load(), "no retry without a fresh token")
	assert.False(t, res.Refreshed)
}

func TestSkipAuthNeverAttachesOrRefreshes(t *testing.T) {
	var got string
	tokens := &fakeTokens{current: "a", next: "b"}
	p := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}, tokens)

	res := p.Do(context.Background(), Request{Method: http.MethodPost, Path: "/user/refresh-token", SkipAuth: true})
	assert.Empty(t, got)
	assert.Equal(t, 0, tokens.refreshes)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(res.Err))
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	p, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client(), nil)
	require.NoError(t, err)

	res := p.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})
	assert.True(t, errors.Is(res.Err, ErrTimeout), "got %v", res.Err)
}

func TestCallerCancellationPassesThrough(t *testing.T) {
	p := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Do(ctx, Request{Method: http.MethodGet, Path: "/x"})
	assert.True(t, errors.Is(res.Err, context.Canceled), "got %v", res.Err)
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := New(Config{BaseURL: url, Timeout: time.Second}, nil, nil)
	require.NoError(t, err)
	res := p.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	assert.True(t, errors.Is(res.Err, ErrNetwork), "got %v", res.Err)
}

func TestBusinessErrors(t *testing.T) {
	p := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/conflict":
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"message":"Item already exists in cart"}`)
		case "/soft":
			_, _ = io.WriteString(w, `{"status":"error","message":"Pincode not serviceable"}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}, nil)

	res := p.Do(context.Background(), Request{Method: http.MethodPost, Path: "/conflict", Body: map[string]int{"q": 1}})
	var apiErr *APIError
	require.True(t, errors.As(res.Err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Item already exists in cart", apiErr.UserMessage())

	res = p.Do(context.Background(), Request{Method: http.MethodGet, Path: "/soft"})
	require.True(t, errors.As(res.Err, &apiErr))
	assert.Equal(t, "Pincode not serviceable", apiErr.UserMessage())

	res = p.Do(context.Background(), Request{Method: http.MethodGet, Path: "/boom"})
	err := WithFallback(res.Err, "Failed to load orders")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Failed to load orders", apiErr.UserMessage())
}

func TestRequestIDHeader(t *testing.T) {
	var got string
	p := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(headerRequestID)
	}, nil)

	res := p.Do(WithRequestID(context.Background(), "req-42"), Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, res.Err)
	assert.Equal(t, "req-42", got)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"}, nil, nil)
	require.Error(t, err)
}
