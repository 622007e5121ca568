package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeSession = "session"
	issuer           = "eduloan"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	AccountID string `json:"sub"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	JTI       string `json:"jti"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// IssueSessionToken signs an opaque bearer token whose jti is the session id.
func (m *Manager) IssueSessionToken(sessionID, accountID, role string, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()

	claims := Claims{
		AccountID: accountID,
		Role:      role,
		TokenType: tokenTypeSession,
		JTI:       sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Subject:   accountID,
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseAndValidate checks signature, algorithm, issuer and expiry.
func (m *Manager) ParseAndValidate(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) VerifySessionToken(tokenStr string) (*Claims, error) {
	claims, err := m.ParseAndValidate(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeSession || claims.JTI == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Deterministic HMAC hash (server-side pepper = JWT secret bytes).
// Session records store this, never the raw token.
func (m *Manager) HashToken(raw string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
