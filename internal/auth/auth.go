// Package auth builds the messaging session from the token issued by the
// SkillSwap auth service. Tokens are only decoded here; the server verifies
// them when the socket connects or a REST call is made.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"skillswap/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no session token")
	ErrNoUserID     = errors.New("token carries no user id")
	ErrTokenExpired = errors.New("session token expired")
)

// Claims are the fields the auth service puts into its tokens. Different
// backends have used "id", "userId" and the registered subject.
type Claims struct {
	AccountID string `json:"id,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) userID() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.AccountID != "":
		return c.AccountID
	default:
		return c.Subject
	}
}

type Config struct {
	Token    string
	UserID   string
	UserName string
}

type SessionBuilder struct {
	parser *jwt.Parser
	now    func() time.Time
}

func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

// Session returns the session for the configured token. An explicit user
// id or name wins over the token's claims. Opaque (non-JWT) tokens are
// accepted when the user id is given explicitly.
func (b *SessionBuilder) Session(cfg Config) (*models.Session, error) {
	token := strings.TrimSpace(strings.TrimPrefix(cfg.Token, "Bearer "))
	if token == "" {
		return nil, ErrNoToken
	}

	session := &models.Session{
		UserID: cfg.UserID,
		Name:   cfg.UserName,
		Token:  token,
	}

	claims := &Claims{}
	if _, _, err := b.parser.ParseUnverified(token, claims); err != nil {
		if session.UserID != "" {
			return session, nil
		}
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(b.now()) {
		return nil, ErrTokenExpired
	}
	if session.UserID == "" {
		session.UserID = claims.userID()
	}
	if session.Name == "" {
		session.Name = claims.Name
	}
	if session.UserID == "" {
		return nil, ErrNoUserID
	}
	return session, nil
}
