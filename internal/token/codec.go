// Package token issues and validates the signed bearer credentials handed to
// clients. Access and refresh tokens are signed with different secrets so one
// class can never be accepted as the other.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid is the only error DecodeAccessToken returns. Signature, expiry
// and format failures are deliberately indistinguishable.
var ErrInvalid = errors.New("token is invalid or expired")

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Kind   Kind   `json:"kind"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Algorithm     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	method        jwt.SigningMethod
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now for both issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token secrets must not be empty")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}

	c := &Codec{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		method:        method,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *Codec) IssueAccessToken(userID string) (string, error) {
	return c.issue(userID, KindAccess, c.accessTTL, c.accessSecret)
}

func (c *Codec) IssueRefreshToken(userID string) (string, error) {
	return c.issue(userID, KindRefresh, c.refreshTTL, c.refreshSecret)
}

// DecodeAccessToken returns ErrInvalid on any failure.
func (c *Codec) DecodeAccessToken(raw string) (*Claims, error) {
	claims, err := c.decode(raw, KindAccess, c.accessSecret)
	if err != nil {
		return nil, ErrInvalid
	}
	return claims, nil
}

// DecodeRefreshToken wraps the underlying parser failure in ErrInvalid so the
// caller can report it.
func (c *Codec) DecodeRefreshToken(raw string) (*Claims, error) {
	claims, err := c.decode(raw, KindRefresh, c.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return claims, nil
}

func (c *Codec) issue(userID string, kind Kind, ttl time.Duration, secret []byte) (string, error) {
	now := c.now().UTC()
	claims := Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (c *Codec) decode(raw string, kind Kind, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("token not valid")
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("token kind %q, want %q", claims.Kind, kind)
	}
	return claims, nil
}
