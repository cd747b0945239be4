package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := Config{JWTSecret: "secret", TokenTTL: time.Hour}

	token, err := GenerateToken(cfg, "op-1", "operator", RoleAdmin)
	require.NoError(t, err)

	claims, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.UserID)
	assert.Equal(t, "operator", claims.Username)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "op-1", claims.Subject)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(Config{JWTSecret: "secret"}, "op-1", "operator", RoleAdmin)
	require.NoError(t, err)

	_, err = ValidateToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	claims := Claims{
		UserID: "op-1",
		Role:   RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ValidateToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		UserID: "op-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMissingSecret(t *testing.T) {
	_, err := GenerateToken(Config{}, "op-1", "operator", RoleAdmin)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = ValidateToken("", "anything")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
