package fakeapi

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/storefront/jwt"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Seeded credentials.
const (
	SeedEmail    = "farmer@example.com"
	SeedPassword = "secret123"
	SeedPhone    = "9876543210"
	SeedUserID   = "u-1"
	SeedName     = "Ravi Kumar"
	FixedOTP     = "123456"
)

// Config configures a Server.
type Config struct {
	// AccessTTL is the lifetime of issued access tokens. Default 15m.
	AccessTTL time.Duration
	// SigningMethod selects the token algorithm. Default jwt.MethodHS256.
	SigningMethod jwt.SigningMethod
	// Secret signs hs256 tokens. A fixed test secret is used when empty.
	Secret []byte
	// SigningKey is the Ed25519 private key, raw or PEM. A fresh key is
	// generated when empty.
	SigningKey []byte
	// Now is the server clock for token issue and verification. Share it
	// with the client under test. Default time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

// Hit is one request that matched a route.
type Hit struct {
	Route      string
	Method     string
	Path       string
	Authorized bool
}

// Server is an in-process storefront backend.
type Server struct {
	cfg    Config
	issuer *jwt.Issuer
	router *mux.Router
	logger *zap.Logger

	mu       sync.Mutex
	users    map[string]*user
	pending  map[string]*user // phone -> registration waiting for OTP
	refresh  map[string]string
	carts    map[string][]cartItem
	orders   map[string][]order
	initiate map[string]*initiated
	invoices map[string]string
	hits     []Hit
	seq      int

	categories []category
	products   []product
	variants   map[string][]variant
	pincodes   map[string]serviceability

	failRefresh     atomic.Bool
	rejectNext      atomic.Int32
	latency         atomic.Int64
	shippingPending atomic.Bool
}

// New returns a Server seeded with one user and a small catalog.
func New(cfg Config) (*Server, error) {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = jwt.MethodHS256
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	key, err := signingKey(&cfg)
	if err != nil {
		return nil, err
	}
	issuer, err := jwt.NewIssuer(jwt.IssuerConfig{
		AccessTTL:     cfg.AccessTTL,
		SigningMethod: cfg.SigningMethod,
		PrivateKey:    key,
		Issuer:        "storefront-fake",
		Now:           cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		issuer:   issuer,
		logger:   cfg.Logger,
		users:    make(map[string]*user),
		pending:  make(map[string]*user),
		refresh:  make(map[string]string),
		carts:    make(map[string][]cartItem),
		orders:   make(map[string][]order),
		initiate: make(map[string]*initiated),
		invoices: make(map[string]string),
	}
	if err := s.seed(); err != nil {
		return nil, err
	}
	s.router = s.routes()
	return s, nil
}

func signingKey(cfg *Config) ([]byte, error) {
	if cfg.SigningMethod != jwt.MethodEd25519 {
		if len(cfg.Secret) == 0 {
			cfg.Secret = []byte("storefront-fake-secret")
		}
		return cfg.Secret, nil
	}
	if len(cfg.SigningKey) == 0 {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		cfg.SigningKey = priv
	}
	return cfg.SigningKey, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// FailRefresh makes the refresh endpoint reject every token.
func (s *Server) FailRefresh(fail bool) { s.failRefresh.Store(fail) }

// RejectNext answers the next n authenticated requests with 401 regardless
// of their token.
func (s *Server) RejectNext(n int) { s.rejectNext.Store(int32(n)) }

// SetLatency delays every response by d.
func (s *Server) SetLatency(d time.Duration) { s.latency.Store(int64(d)) }

// SetShippingPending makes payment verification report a pending courier
// booking.
func (s *Server) SetShippingPending(pending bool) { s.shippingPending.Store(pending) }

// IssueToken signs an access token for userID with an explicit lifetime.
func (s *Server) IssueToken(userID string, ttl time.Duration) (string, error) {
	return s.issuer.IssueWithTTL(userID, "user", ttl)
}

// Hits returns how many requests matched the named route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		if h.Route == route {
			n++
		}
	}
	return n
}

// LastHit returns the most recent request on route.
func (s *Server) LastHit(route string) (Hit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.hits) - 1; i >= 0; i-- {
		if s.hits[i].Route == route {
			return s.hits[i], true
		}
	}
	return Hit{}, false
}

// AllHits returns every recorded request in arrival order.
func (s *Server) AllHits() []Hit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Hit(nil), s.hits...)
}

// ResetHits forgets recorded requests.
func (s *Server) ResetHits() {
	s.mu.Lock()
	s.hits = nil
	s.mu.Unlock()
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		s.mu.Lock()
		s.hits = append(s.hits, Hit{
			Route:      name,
			Method:     r.Method,
			Path:       r.URL.Path,
			Authorized: r.Header.Get("Authorization") != "",
		})
		s.mu.Unlock()

		if d := time.Duration(s.latency.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		s.logger.Debug("fake api request", zap.String("route", name), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

/*
====================================
AUTH GUARD
====================================
*/

type claimsContextKey struct{}

func userIDFromContext(ctx context.Context) string {
	claims, _ := ctx.Value(claimsContextKey{}).(*jwt.Claims)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

func (s *Server) guard(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.consumeReject() {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := s.issuer.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Token expired or invalid")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) consumeReject() bool {
	for {
		n := s.rejectNext.Load()
		if n <= 0 {
			return false
		}
		if s.rejectNext.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

/*
====================================
RESPONSES
====================================
*/

type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any, msg string) {
	writeJSON(w, status, envelope{Status: "success", Data: data, Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Status: "error", Message: msg})
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + strconv.Itoa(s.seq)
}
