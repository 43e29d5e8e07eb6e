package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingSecret is returned when a validator is built without a key
	ErrMissingSecret = errors.New("jwt secret is required")
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// JWTConfig configures an HS256 token validator
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// JWTValidator validates HS256 bearer tokens signed with a shared secret
type JWTValidator struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewJWTValidator creates a validator. Issuer and audience are checked only when set.
func NewJWTValidator(config JWTConfig) (*JWTValidator, error) {
	if config.Secret == "" {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTValidator{secret: []byte(config.Secret), opts: opts}, nil
}

// ValidateToken implements TokenValidator
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	out := &Claims{
		Subject:  claims.Subject,
		Issuer:   claims.Issuer,
		Audience: []string(claims.Audience),
		Scope:    claims.Scope,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Unix()
	}
	return out, nil
}

// SignToken issues an HS256 token for the given subject. It is used by the
// CLI and tests to mint credentials for a configured secret.
func SignToken(config JWTConfig, subject string, claims jwt.RegisteredClaims) (string, error) {
	if config.Secret == "" {
		return "", ErrMissingSecret
	}
	claims.Subject = subject
	if claims.Issuer == "" {
		claims.Issuer = config.Issuer
	}
	if len(claims.Audience) == 0 && config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{config.Audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{RegisteredClaims: claims})
	return token.SignedString([]byte(config.Secret))
}
