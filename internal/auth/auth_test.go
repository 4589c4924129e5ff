package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("s3cret")
	req.NoError(err)
	req.NotEqual("s3cret", hash)
	req.True(strings.HasPrefix(hash, "$2a$10$"))

	match, err := ComparePassword("s3cret", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong", hash)
	req.NoError(err)
	req.False(match)

	_, err = ComparePassword("s3cret", "not-a-hash")
	req.Error(err)
}

func TestHashIsSalted(t *testing.T) {
	req := require.New(t)

	a, err := HashPassword("same")
	req.NoError(err)
	b, err := HashPassword("same")
	req.NoError(err)
	req.NotEqual(a, b)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssueAndValidate(t *testing.T) {
	req := require.New(t)
	issuer, err := NewIssuer("test-secret", 84600*time.Second)
	req.NoError(err)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	token, err := issuer.Issue("user-1", "alice@example.com")
	req.NoError(err)

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
	req.Equal("alice@example.com", claims.Email)
	req.Equal(now.Unix(), claims.IssuedAt.Unix())
	req.Equal(now.Add(84600*time.Second).Unix(), claims.ExpiresAt.Unix())
}

func TestValidateRejects(t *testing.T) {
	issuer, err := NewIssuer("test-secret", time.Minute)
	require.NoError(t, err)
	other, err := NewIssuer("other-secret", time.Minute)
	require.NoError(t, err)

	valid, err := issuer.Issue("user-1", "alice@example.com")
	require.NoError(t, err)
	foreign, err := other.Issue("user-1", "alice@example.com")
	require.NoError(t, err)

	expiredIssuer, err := NewIssuer("test-secret", time.Minute)
	require.NoError(t, err)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.Issue("user-1", "alice@example.com")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"alg none", none},
		{"tampered", valid[:len(valid)-2] + "xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Validate(tt.token)
			require.Error(t, err)
		})
	}
}
