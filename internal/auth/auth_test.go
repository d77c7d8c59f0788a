package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionBuilder(t *testing.T) {
	t0 := time.Unix(1700000000, 0)

	sign := func(t *testing.T, claims Claims) string {
		t.Helper()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return token
	}

	builder := NewSessionBuilder()
	builder.now = func() time.Time { return t0 }

	valid := sign(t, Claims{
		UserID: "u1",
		Name:   "Alex Rivera",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour)),
		},
	})

	t.Run("Claims", func(t *testing.T) {
		session, err := builder.Session(Config{Token: valid})
		if err != nil {
			t.Fatalf("Session failed: %v", err)
		}
		if session.UserID != "u1" || session.Name != "Alex Rivera" || session.Token != valid {
			t.Errorf("unexpected session %+v", session)
		}
	})

	t.Run("BearerPrefix", func(t *testing.T) {
		session, err := builder.Session(Config{Token: "Bearer " + valid})
		if err != nil {
			t.Fatalf("Session failed: %v", err)
		}
		if session.Token != valid {
			t.Errorf("expected prefix to be stripped, got %q", session.Token)
		}
	})

	t.Run("ExplicitValuesWin", func(t *testing.T) {
		session, err := builder.Session(Config{Token: valid, UserID: "override", UserName: "Someone"})
		if err != nil {
			t.Fatalf("Session failed: %v", err)
		}
		if session.UserID != "override" || session.Name != "Someone" {
			t.Errorf("unexpected session %+v", session)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		expired := sign(t, Claims{
			UserID: "u1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(t0.Add(-time.Minute)),
			},
		})
		if _, err := builder.Session(Config{Token: expired}); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("UserIDFallbacks", func(t *testing.T) {
		tests := []struct {
			name   string
			claims Claims
			want   string
		}{
			{"id claim", Claims{AccountID: "acc-1"}, "acc-1"},
			{"subject", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}}, "sub-1"},
			{"userId wins", Claims{UserID: "u1", AccountID: "acc-1", RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}}, "u1"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				session, err := builder.Session(Config{Token: sign(t, tt.claims)})
				if err != nil {
					t.Fatalf("Session failed: %v", err)
				}
				if session.UserID != tt.want {
					t.Errorf("expected user %q, got %q", tt.want, session.UserID)
				}
			})
		}
	})

	t.Run("NoUserID", func(t *testing.T) {
		token := sign(t, Claims{Name: "Nobody"})
		if _, err := builder.Session(Config{Token: token}); !errors.Is(err, ErrNoUserID) {
			t.Errorf("expected ErrNoUserID, got %v", err)
		}
	})

	t.Run("OpaqueToken", func(t *testing.T) {
		session, err := builder.Session(Config{Token: "opaque-token", UserID: "u1"})
		if err != nil {
			t.Fatalf("Session failed: %v", err)
		}
		if session.Token != "opaque-token" || session.UserID != "u1" {
			t.Errorf("unexpected session %+v", session)
		}

		if _, err := builder.Session(Config{Token: "opaque-token"}); err == nil {
			t.Error("expected an error for an opaque token without a user id")
		}
	})

	t.Run("NoToken", func(t *testing.T) {
		for _, token := range []string{"", "  ", "Bearer "} {
			if _, err := builder.Session(Config{Token: token, UserID: "u1"}); !errors.Is(err, ErrNoToken) {
				t.Errorf("token %q: expected ErrNoToken, got %v", token, err)
			}
		}
	})
}
