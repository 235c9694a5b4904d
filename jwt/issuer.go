package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm used by [Issuer].
type SigningMethod string

const (
	// MethodHS256 signs with a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// IssuerConfig configures an [Issuer].
type IssuerConfig struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	// Now overrides the issuing clock. Nil means time.Now.
	Now func() time.Time
}

// Issuer mints and verifies access tokens. The storefront backend owns the
// real signing key; Issuer exists so tests and the fake backend can produce
// tokens with controlled expiry.
type Issuer struct {
	config IssuerConfig
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case "", MethodHS256:
		cfg.SigningMethod = MethodHS256
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if len(cfg.PublicKey) == 0 {
			priv, _ := parseEdPrivateKey(cfg.PrivateKey)
			cfg.PublicKey = priv.Public().(ed25519.PublicKey)
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{config: cfg}, nil
}

// TTL returns the configured access token lifetime.
func (i *Issuer) TTL() time.Duration { return i.config.AccessTTL }

// Issue signs an access token for userID expiring after the configured TTL.
func (i *Issuer) Issue(userID, role string) (string, error) {
	return i.IssueWithTTL(userID, role, i.config.AccessTTL)
}

// IssueWithTTL signs an access token with an explicit lifetime. A negative
// ttl yields an already-expired token.
func (i *Issuer) IssueWithTTL(userID, role string, ttl time.Duration) (string, error) {
	now := i.config.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.config.Issuer,
		},
	}

	signKey, err := i.signKey()
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(i.method(), claims).SignedString(signKey)
}

// Verify checks the signature, issuer and expiry of token.
func (i *Issuer) Verify(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.config.Now),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != i.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return i.verifyKey()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (i *Issuer) method() jwt.SigningMethod {
	if i.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (i *Issuer) signKey() (interface{}, error) {
	if i.config.SigningMethod == MethodEd25519 {
		return parseEdPrivateKey(i.config.PrivateKey)
	}
	return i.config.PrivateKey, nil
}

func (i *Issuer) verifyKey() (interface{}, error) {
	if i.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(i.config.PublicKey)
	}
	return i.config.PrivateKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
