package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

const testSecret = "test-secret"

func signToken(t testing.TB, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)

	return token
}

func TestVerifier_Verify(t *testing.T) {
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "link-shortener",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	tests := []struct {
		name    string
		token   string
		opts    []VerifierOption
		want    entity.Identity
		wantErr bool
	}{
		{
			name:  "valid token",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), valid),
			want:  entity.Identity{Subject: "alice"},
		},
		{
			name:  "matching issuer",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), valid),
			opts:  []VerifierOption{WithIssuer("link-shortener")},
			want:  entity.Identity{Subject: "alice"},
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: true,
		},
		{
			name:    "malformed token",
			token:   "not.a.jwt",
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), valid),
			wantErr: true,
		},
		{
			name:    "unexpected signing method",
			token:   signToken(t, jwt.SigningMethodHS512, []byte(testSecret), valid),
			wantErr: true,
		},
		{
			name:    "none algorithm",
			token:   signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid),
			wantErr: true,
		},
		{
			name: "expired token",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			}),
			wantErr: true,
		},
		{
			name: "no expiry",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				Subject: "alice",
			}),
			wantErr: true,
		},
		{
			name: "no subject",
			token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
			wantErr: true,
		},
		{
			name:    "issuer mismatch",
			token:   signToken(t, jwt.SigningMethodHS256, []byte(testSecret), valid),
			opts:    []VerifierOption{WithIssuer("someone-else")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(testSecret, tt.opts...)

			id, err := v.Verify(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, entity.ErrUnauthorized)
				assert.Zero(t, id)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}
