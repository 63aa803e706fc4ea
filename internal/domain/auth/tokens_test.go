package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("Sup3r-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3r-secret", hash)
	assert.NoError(t, CheckPassword(hash, "Sup3r-secret"))
	assert.Error(t, CheckPassword(hash, "wrong"))
}

func TestTokenRoundTripKeepsImpersonation(t *testing.T) {
	claims := Claims{UserID: "u1", TenantID: "t1", RoleID: "r1", RoleName: RoleHR, SessionID: "s1", ImpersonatorID: "admin"}
	token, err := GenerateToken("test-secret", claims, time.Hour)
	require.NoError(t, err)

	parsed, err := ParseToken("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "u1", parsed.Subject)

	user := parsed.Context()
	assert.Equal(t, UserContext{UserID: "u1", TenantID: "t1", RoleID: "r1", RoleName: RoleHR, SessionID: "s1", ImpersonatorID: "admin"}, user)
	assert.True(t, user.Impersonating())
}

func TestParseTokenRejects(t *testing.T) {
	good, err := GenerateToken("one", Claims{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("one", Claims{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("one"))
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct{ secret, token string }{
		"wrong secret":  {"two", good},
		"expired":       {"one", expired},
		"wrong issuer":  {"one", foreign},
		"none alg":      {"one", unsigned},
		"garbage input": {"one", "not.a.token"},
	}
	for name, tc := range cases {
		_, err := ParseToken(tc.secret, tc.token)
		assert.Error(t, err, name)
	}
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
