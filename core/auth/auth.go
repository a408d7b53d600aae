package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated user of a session. The zero value is the
// anonymous session.
type Identity struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Anonymous is the identity of a session without credentials.
var Anonymous = Identity{}

// Authenticated reports whether the session carries a user.
func (i Identity) Authenticated() bool {
	return i.UserID != "" && i.Token != ""
}

// Expired reports whether the token expiry has passed.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Equal compares user identity, ignoring token rotation.
func (i Identity) Equal(o Identity) bool {
	return i.UserID == o.UserID
}

// claims covers the subject keys issued by the identity providers we see:
// standard "sub", or "userId"/"user_id" in custom tokens.
type claims struct {
	UserID    string `json:"userId,omitempty"`
	UserIDAlt string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// FromToken derives the identity carried by a bearer token. The signature
// is not verified here: the backend verifies every authenticated request,
// the client only needs the subject for ownership filtering.
func FromToken(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Anonymous, nil
	}

	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Anonymous, fmt.Errorf("failed to parse token: %w", err)
	}

	userID := c.Subject
	if userID == "" {
		userID = c.UserID
	}
	if userID == "" {
		userID = c.UserIDAlt
	}
	if userID == "" {
		return Anonymous, fmt.Errorf("token carries no subject")
	}

	id := Identity{UserID: userID, Token: token}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id, nil
}
