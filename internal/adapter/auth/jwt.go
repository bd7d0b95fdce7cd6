// Package auth verifies the bearer credentials presented to guarded routes.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

// Verifier checks HS256 tokens signed with a shared secret. It keeps no
// per-token state, so a single value is safe for concurrent use.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

type VerifierOption func(*verifierOptions)

type verifierOptions struct {
	issuer string
}

// WithIssuer rejects tokens whose iss claim differs from issuer.
func WithIssuer(issuer string) VerifierOption {
	return func(o *verifierOptions) {
		o.issuer = issuer
	}
}

func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	var o verifierOptions
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if o.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(o.issuer))
	}

	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(parserOpts...),
	}
}

// Verify returns the identity named by the token subject.
func (v *Verifier) Verify(token string) (entity.Identity, error) {
	const op = "adapter.auth.Verifier.Verify"

	if token == "" {
		return entity.Identity{}, fmt.Errorf("%s: empty token: %w", op, entity.ErrUnauthorized)
	}

	var claims jwt.RegisteredClaims

	_, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return entity.Identity{}, fmt.Errorf("%s: %w: %w", op, entity.ErrUnauthorized, err)
	}

	if claims.Subject == "" {
		return entity.Identity{}, fmt.Errorf("%s: %w: %w", op, entity.ErrUnauthorized, errors.New("token has no subject"))
	}

	return entity.Identity{Subject: claims.Subject}, nil
}
