package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	j := NewJWTUtil("test-secret", time.Hour)

	token, err := j.GenerateToken(42, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := j.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "folderly-api", claims.Issuer)
}

func TestValidateTokenExpired(t *testing.T) {
	j := NewJWTUtil("test-secret", -time.Minute)

	token, err := j.GenerateToken(1, "user")
	require.NoError(t, err)

	_, err = j.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	issuer := NewJWTUtil("secret-a", time.Hour)
	verifier := NewJWTUtil("secret-b", time.Hour)

	token, err := issuer.GenerateToken(1, "user")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenGarbage(t *testing.T) {
	j := NewJWTUtil("test-secret", time.Hour)

	_, err := j.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenWrongSigningMethod(t *testing.T) {
	j := NewJWTUtil("test-secret", time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = j.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateTokenMissingRoleDefaultsToUser(t *testing.T) {
	j := NewJWTUtil("test-secret", time.Hour)

	// Token carrying only a userId, no role claim
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": 7,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	claims, err := j.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "user", claims.Role)
}
