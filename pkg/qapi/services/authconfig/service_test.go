package authconfig

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quatton/qgate/pkg/kv"
	"github.com/quatton/qgate/pkg/qapi/services/store"
	"github.com/quatton/qgate/pkg/qerr"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newKeycloak(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/quantum/protocol/openid-connect/userinfo" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer kc-good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":                "kc-sub-1",
			"preferred_username": "alice",
			"name":               "Alice",
			"email":              "alice@example.org",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newService(t *testing.T, keycloakURL string) (*AuthService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	svc := NewAuthService(Config{
		Secret:        testSecret,
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		KeycloakURL:   keycloakURL,
		KeycloakRealm: "quantum",
		Timeout:       5 * time.Second,
	}, st, kv.NewMemoryStore(), nil)
	return svc, st
}

func TestKeycloakSessionCreatesUser(t *testing.T) {
	kc := newKeycloak(t)
	svc, st := newService(t, kc.URL)
	ctx := context.Background()

	session, err := svc.KeycloakSession(ctx, "kc-good")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if session.User.Login != "alice" || session.TokenType != "bearer" || session.ExpiresIn != 3600 {
		t.Fatalf("unexpected session %+v", session)
	}

	user, err := svc.ValidateToken(session.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if user.ID != session.User.ID {
		t.Fatalf("token subject %s, want %s", user.ID, session.User.ID)
	}

	stored, err := st.FindUserByLogin(ctx, "alice")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if stored.Provider != "keycloak" || stored.ProviderID != "kc-sub-1" {
		t.Fatalf("unexpected provider binding %s/%s", stored.Provider, stored.ProviderID)
	}

	// Signing in again reuses the account.
	again, err := svc.KeycloakSession(ctx, "kc-good")
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if again.User.ID != session.User.ID {
		t.Fatal("second sign-in created a new user")
	}
}

func TestKeycloakSessionRejectedToken(t *testing.T) {
	kc := newKeycloak(t)
	svc, _ := newService(t, kc.URL)

	_, err := svc.KeycloakSession(context.Background(), "kc-bad")
	if !qerr.IsCode(err, qerr.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestKeycloakSessionNotConfigured(t *testing.T) {
	svc, _ := newService(t, "")

	_, err := svc.KeycloakSession(context.Background(), "kc-good")
	if !qerr.IsCode(err, qerr.CodeNotConfigured) {
		t.Fatalf("expected not_configured, got %v", err)
	}
}

func TestRefreshTokenRotates(t *testing.T) {
	kc := newKeycloak(t)
	svc, _ := newService(t, kc.URL)
	ctx := context.Background()

	session, err := svc.KeycloakSession(ctx, "kc-good")
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	next, err := svc.RefreshTokens(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == session.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	if _, err := svc.RefreshTokens(ctx, session.RefreshToken); !qerr.IsCode(err, qerr.CodeUnauthorized) {
		t.Fatalf("reused refresh token should be rejected, got %v", err)
	}
	if _, err := svc.RefreshTokens(ctx, next.RefreshToken); err != nil {
		t.Fatalf("rotated token should work: %v", err)
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	kc := newKeycloak(t)
	svc, _ := newService(t, kc.URL)

	session, err := svc.KeycloakSession(context.Background(), "kc-good")
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	other := NewAuthService(Config{Secret: "ffffffffffffffffffffffffffffffff", AccessTTL: time.Hour}, store.NewMemoryStore(), kv.NewMemoryStore(), nil)
	if _, err := other.ValidateToken(session.AccessToken); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
	if _, err := svc.ValidateToken("not-a-jwt"); err == nil {
		t.Fatal("garbage token was accepted")
	}
}
