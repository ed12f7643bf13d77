package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
	"github.com/neighborly/neighborly/internal/model"
)

func newTestAuth(t *testing.T) (*AuthService, *config.Store) {
	t.Helper()
	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	auth := NewAuthService(store, AuthConfig{
		JWTSecret:  "test-secret-key-for-jwt",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
		Logger:     slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	})
	return auth, store
}

func register(t *testing.T, auth *AuthService, username string) *model.User {
	t.Helper()
	u, err := auth.Register(context.Background(), RegisterInput{Username: username, Password: "hunter22", Phone: "555-" + username})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return u
}

func TestRegisterDefaults(t *testing.T) {
	auth, store := newTestAuth(t)
	u := register(t, auth, "alice")

	if u.Role != authz.RoleUser {
		t.Errorf("role = %q, want user", u.Role)
	}
	if u.CreditPoints != model.SignupBonus {
		t.Errorf("credit points = %d, want %d", u.CreditPoints, model.SignupBonus)
	}
	if !u.IsVerified {
		t.Error("self-service accounts are marked verified")
	}
	if u.PasswordHash == "hunter22" {
		t.Error("password stored in plain text")
	}

	stored, err := store.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")) != nil {
		t.Error("stored hash does not match password")
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuth(t)

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"short username", RegisterInput{Username: "ab", Password: "hunter22", Phone: "555-0101"}, "username"},
		{"missing password", RegisterInput{Username: "bob", Phone: "555-0101"}, "password"},
		{"bad email", RegisterInput{Username: "bob", Password: "hunter22", Phone: "555-0101", Email: "not-an-email"}, "email"},
		{"missing phone", RegisterInput{Username: "bob", Password: "hunter22"}, "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Register(context.Background(), tt.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if _, ok := ve.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want %q", ve.Fields, tt.field)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	auth, _ := newTestAuth(t)
	register(t, auth, "carol")

	_, err := auth.Register(context.Background(), RegisterInput{Username: "carol", Password: "hunter22", Phone: "555-0199"})
	if !errors.Is(err, config.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestCreateUserWithRole(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	u, err := auth.CreateUser(ctx, RegisterInput{Username: "shopkeeper", Password: "hunter22"}, authz.RoleMerchant)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Role != authz.RoleMerchant {
		t.Errorf("role = %q, want merchant", u.Role)
	}

	_, err = auth.CreateUser(ctx, RegisterInput{Username: "someone", Password: "hunter22"}, "emperor")
	if !errors.Is(err, authz.ErrUnknownRole) {
		t.Errorf("err = %v, want ErrUnknownRole", err)
	}
}

func TestLogin(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()
	u := register(t, auth, "dave")

	got, token, err := auth.Login(ctx, "dave", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != u.ID || token == "" {
		t.Errorf("Login = (%d, %q)", got.ID, token)
	}
	stored, _ := store.GetUser(ctx, u.ID)
	if stored.LastLoginAt == nil {
		t.Error("expected last_login_at to be recorded")
	}

	if _, _, err := auth.Login(ctx, "dave", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := auth.Login(ctx, "nobody", "hunter22"); err != ErrInvalidCredentials {
		t.Errorf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}

	if err := store.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if _, _, err := auth.Login(ctx, "dave", "hunter22"); err != ErrAccountDisabled {
		t.Errorf("disabled: err = %v, want ErrAccountDisabled", err)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()
	u := register(t, auth, "erin")

	token, err := auth.IssueJWT(ctx, u, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	principal, err := auth.ValidateJWT(ctx, token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if principal.ID != u.ID {
		t.Errorf("ID: got %d, want %d", principal.ID, u.ID)
	}
	if principal.Role != authz.RoleUser {
		t.Errorf("Role: got %q, want user", principal.Role)
	}
}

func TestJWTReflectsRoleChange(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()
	u := register(t, auth, "frank")

	token, err := auth.IssueJWT(ctx, u, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if err := store.SetUserRole(ctx, u.ID, authz.RoleModerator); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}

	principal, err := auth.ValidateJWT(ctx, token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if principal.Role != authz.RoleModerator {
		t.Errorf("Role: got %q, want moderator", principal.Role)
	}
}

func TestJWTExpired(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()
	u := register(t, auth, "gina")

	// Issue a token with negative TTL (already expired)
	token, err := auth.IssueJWT(ctx, u, -1*time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	if _, err := auth.ValidateJWT(ctx, token); err != ErrTokenExpired {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestJWTInvalidToken(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.ValidateJWT(ctx, "garbage.token.here"); err != ErrInvalidCredentials {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestJWTWrongSecret(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()
	u := register(t, auth, "hank")

	other := NewAuthService(store, AuthConfig{JWTSecret: "some-other-secret"})
	token, err := other.IssueJWT(ctx, u, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if _, err := auth.ValidateJWT(ctx, token); err != ErrInvalidCredentials {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestJWTDisabledAccount(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()
	u := register(t, auth, "ivy")

	token, _ := auth.IssueJWT(ctx, u, time.Hour)
	if err := store.SetUserActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	if _, err := auth.ValidateJWT(ctx, token); err != ErrAccountDisabled {
		t.Errorf("err = %v, want ErrAccountDisabled", err)
	}
}
