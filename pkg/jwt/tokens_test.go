package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("user-1", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "placefinder", claims.Issuer)
	require.NotNil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
}

func TestGenerateWithoutTTLOmitsExpiry(t *testing.T) {
	token, err := GenerateToken("user-1", "secret", 0)
	require.NoError(t, err)

	claims, err := Parse(token, "secret")
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", "secret", 0)
	require.NoError(t, err)

	_, err = Parse(token, "other")
	assert.ErrorIs(t, err, jwtlib.ErrTokenSignatureInvalid)
}

func TestParseRejectsUnsignedToken(t *testing.T) {
	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{UserID: "user-1"})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = Parse(raw, "secret")
	assert.Error(t, err)
}

func TestParseRejectsMissingUserID(t *testing.T) {
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{})
	raw, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = Parse(raw, "secret")
	assert.ErrorIs(t, err, jwtlib.ErrTokenInvalidClaims)
}

func TestEmptySecretRejected(t *testing.T) {
	_, err := GenerateToken("user-1", "", 0)
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = Parse("a.b.c", "")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
