package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/bursar/internal/pkg/apperrors"
)

func newTestService(exp time.Duration) *JWTService {
	return NewJWTService(JWTConfig{SecretKey: "test-secret", AccessTokenExp: exp, TokenIssuer: "identity"})
}

func TestGenerateAndValidate(t *testing.T) {
	s := newTestService(time.Hour)
	token, err := s.GenerateToken("clerk-7", "BURSAR")
	require.NoError(t, err)

	claims, err := s.ValidateAndExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "clerk-7", claims.Subject)
	assert.Equal(t, "BURSAR", claims.Role)
}

func TestValidateExpired(t *testing.T) {
	s := newTestService(-time.Minute)
	token, err := s.GenerateToken("clerk-7", "BURSAR")
	require.NoError(t, err)

	_, err = s.ValidateAndExtractClaims(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestValidateWrongSecretOrIssuer(t *testing.T) {
	token, err := newTestService(time.Hour).GenerateToken("clerk-7", "BURSAR")
	require.NoError(t, err)

	other := NewJWTService(JWTConfig{SecretKey: "other", TokenIssuer: "identity"})
	_, err = other.ValidateAndExtractClaims(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)

	otherIssuer := NewJWTService(JWTConfig{SecretKey: "test-secret", TokenIssuer: "someone-else"})
	_, err = otherIssuer.ValidateAndExtractClaims(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestValidateRejectsMissingRole(t *testing.T) {
	s := newTestService(time.Hour)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "clerk-7",
		Issuer:    "identity",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = s.ValidateAndExtractClaims(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestValidateMalformed(t *testing.T) {
	_, err := newTestService(time.Hour).ValidateAndExtractClaims("not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrInvalidFormat)
}

func TestExtractBearerToken(t *testing.T) {
	token, err := ExtractBearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	token, err = ExtractBearerToken("abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = ExtractBearerToken("Bearer ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidFormat)
	_, err = ExtractBearerToken("")
	assert.ErrorIs(t, err, apperrors.ErrInvalidFormat)
}
