package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "pmds"

// Claims is the signed session payload. The session id ties a token to a
// row in sessions so logout and password resets can revoke it.
type Claims struct {
	UserID         string `json:"uid"`
	TenantID       string `json:"tid"`
	RoleID         string `json:"rid"`
	RoleName       string `json:"role"`
	SessionID      string `json:"sid,omitempty"`
	ImpersonatorID string `json:"imp,omitempty"`
	jwt.RegisteredClaims
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashed), err
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// HashToken is how session ids and reset tokens are stored at rest.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}

func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	issued := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// Context converts verified claims into the request user.
func (c Claims) Context() UserContext {
	return UserContext{
		UserID:         c.UserID,
		TenantID:       c.TenantID,
		RoleID:         c.RoleID,
		RoleName:       c.RoleName,
		SessionID:      c.SessionID,
		ImpersonatorID: c.ImpersonatorID,
	}
}
