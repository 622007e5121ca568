package session

import (
	"errors"
	"time"

	"github.com/geocoder89/eduloan/internal/domain/account"
)

var ErrNotFound = errors.New("session not found")

// Session is an authenticated principal. A nil *Session is anonymous.
type Session struct {
	ID              string          `json:"id"`
	Account         account.Account `json:"account"`
	Token           string          `json:"-"`
	IsAuthenticated bool            `json:"isAuthenticated"`
	CreatedAt       time.Time       `json:"createdAt"`
	ExpiresAt       time.Time       `json:"expiresAt"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.IsAuthenticated
}

// Record is the persisted form of a session. It never holds a raw token or password.
type Record struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"accountId"`
	TokenHash     string    `json:"tokenHash"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
