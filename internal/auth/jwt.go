package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrUnsupportedAlgorithm is returned when the codec is configured with a non-HMAC algorithm
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// DefaultAlgorithm is the signing algorithm used when none is configured.
const DefaultAlgorithm = "HS256"

// TokenTypeBearer is the token_type reported alongside every issued token.
const TokenTypeBearer = "bearer"

// Claims is the token payload: who the token was issued to and when it stops being valid.
type Claims struct {
	Subject   string `json:"sub"`
	ExpiresAt int64  `json:"exp"` // epoch seconds
}

// NewClaims builds claims for subject expiring ttl after now
func NewClaims(subject string, now time.Time, ttl time.Duration) Claims {
	return Claims{
		Subject:   subject,
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// Expiry returns the expiry instant
func (c Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// Codec signs claims into tokens and validates tokens back into claims.
type Codec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithClock sets the time source used for expiry checks
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a codec for the given shared secret and HMAC algorithm (HS256, HS384 or HS512)
func NewCodec(secret []byte, algorithm string, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}

	c := &Codec{
		secret: secret,
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Algorithm returns the JWT alg header value this codec signs and accepts
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Now returns the current instant according to the codec's clock
func (c *Codec) Now() time.Time {
	return c.now()
}

// Encode signs claims into a compact JWT
func (c *Codec) Encode(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("claims subject is required")
	}
	if claims.ExpiresAt == 0 {
		return "", errors.New("claims expiry is required")
	}

	token := jwt.NewWithClaims(c.method, jwt.RegisteredClaims{
		Subject:   claims.Subject,
		ExpiresAt: jwt.NewNumericDate(claims.Expiry()),
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode validates the token signature, algorithm and expiry and returns its claims
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	registered := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, registered, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if registered.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	if registered.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}

	claims := &Claims{
		Subject:   registered.Subject,
		ExpiresAt: registered.ExpiresAt.Unix(),
	}

	// A token is expired from the exp instant onwards.
	if !c.now().Before(claims.Expiry()) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}
