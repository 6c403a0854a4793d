package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest signing secret NewTokenCodec accepts.
const MinSecretLength = 16

var signingMethod = jwt.SigningMethodHS256

// TokenCodec issues and verifies HS256-signed session tokens carrying a user
// id and the time of issue.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces the time source used for issuing and age checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec returns a codec signing with secret. The secret is copied.
func NewTokenCodec(secret []byte, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrSecretTooShort, MinSecretLength)
	}
	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// Issue returns a URL-safe token for userID stamped with the current time.
func (c *TokenCodec) Issue(userID int64) (string, error) {
	token := jwt.NewWithClaims(signingMethod, jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		IssuedAt: jwt.NewNumericDate(c.now()),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify returns the user id embedded in token when its signature is valid
// and it was issued no more than maxAge ago. It returns ErrTokenInvalid or
// ErrTokenExpired otherwise.
func (c *TokenCodec) Verify(token string, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, ErrTokenInvalid
	}

	// The MAC is checked before any claim is decoded.
	dot := strings.LastIndexByte(token, '.')
	if dot <= 0 || strings.Count(token, ".") != 2 {
		return 0, ErrTokenInvalid
	}
	sig, err := c.parser.DecodeSegment(token[dot+1:])
	if err != nil {
		return 0, ErrTokenInvalid
	}
	if err := signingMethod.Verify(token[:dot], sig, c.secret); err != nil {
		return 0, ErrTokenInvalid
	}

	var claims jwt.RegisteredClaims
	parsed, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrTokenInvalid
	}
	if claims.IssuedAt == nil {
		return 0, ErrTokenInvalid
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrTokenInvalid
	}

	if c.now().Sub(claims.IssuedAt.Time) > maxAge {
		return 0, ErrTokenExpired
	}
	return userID, nil
}
