package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
	"github.com/angelmondragon/devicehub-backend/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "devicehub"}

func mustVerifier(t *testing.T, cfg config.JWTConfig) *Verifier {
	t.Helper()
	v, err := NewVerifier(cfg)
	require.NoError(t, err)
	return v
}

func TestVerifyRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := MintAccessToken(testCfg, time.Now(), 30*time.Minute, AccessTokenPayload{
		UserID: userID,
		Role:   enums.RoleBuyer,
		Email:  " buyer@example.com ",
	})
	require.NoError(t, err)

	claims, err := mustVerifier(t, testCfg).Verify(token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, enums.RoleBuyer, claims.Role)
	require.Equal(t, "buyer@example.com", claims.Email)
	require.NotEmpty(t, claims.ID)
}

func TestVerifyRejects(t *testing.T) {
	valid := func(cfg config.JWTConfig, issuedAt time.Time) string {
		token, err := MintAccessToken(cfg, issuedAt, time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleAdmin})
		require.NoError(t, err)
		return token
	}

	t.Run("expired", func(t *testing.T) {
		_, err := mustVerifier(t, testCfg).Verify(valid(testCfg, time.Now().Add(-2*time.Hour)))
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})
	t.Run("wrong secret", func(t *testing.T) {
		other := testCfg
		other.Secret = "other"
		_, err := mustVerifier(t, other).Verify(valid(testCfg, time.Now()))
		require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})
	t.Run("wrong issuer", func(t *testing.T) {
		other := testCfg
		other.Issuer = "someone-else"
		_, err := mustVerifier(t, other).Verify(valid(testCfg, time.Now()))
		require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})
	t.Run("unknown role", func(t *testing.T) {
		claims := AccessTokenClaims{
			UserID: uuid.New(),
			Role:   enums.Role("owner"),
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    testCfg.Issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testCfg.Secret))
		require.NoError(t, err)
		_, err = mustVerifier(t, testCfg).Verify(token)
		require.True(t, errors.Is(err, ErrInvalidRole), "got %v", err)
	})
	t.Run("subject drift", func(t *testing.T) {
		claims := AccessTokenClaims{
			UserID: uuid.New(),
			Role:   enums.RoleBuyer,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    testCfg.Issuer,
				Subject:   uuid.NewString(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testCfg.Secret))
		require.NoError(t, err)
		_, err = mustVerifier(t, testCfg).Verify(token)
		require.ErrorIs(t, err, ErrSubjectDrift)
	})
}

func TestNewVerifierRequiresConfig(t *testing.T) {
	_, err := NewVerifier(config.JWTConfig{Issuer: "x"})
	require.Error(t, err)
	_, err = NewVerifier(config.JWTConfig{Secret: "x"})
	require.Error(t, err)
}

func TestMintAccessTokenValidatesPayload(t *testing.T) {
	_, err := MintAccessToken(testCfg, time.Now(), time.Hour, AccessTokenPayload{UserID: uuid.New(), Role: enums.Role("owner")})
	require.ErrorContains(t, err, "invalid role")
	_, err = MintAccessToken(testCfg, time.Now(), time.Hour, AccessTokenPayload{Role: enums.RoleBuyer})
	require.Error(t, err)
	_, err = MintAccessToken(testCfg, time.Now(), 0, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleBuyer})
	require.Error(t, err)
}
