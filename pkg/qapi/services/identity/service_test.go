package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/quatton/qgate/pkg/qerr"
)

type upstreams struct {
	keycloak *httptest.Server
	site     *httptest.Server

	mu        sync.Mutex
	tokenForm url.Values
	exchanged string
}

func newUpstreams(t *testing.T, keycloakStatus int) *upstreams {
	t.Helper()
	u := &upstreams{}

	u.keycloak = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/quantum/protocol/openid-connect/token/" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		u.mu.Lock()
		u.tokenForm = r.PostForm
		u.mu.Unlock()

		if keycloakStatus != http.StatusOK {
			w.WriteHeader(keycloakStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid user credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"kc-access","token_type":"Bearer"}`))
	}))
	t.Cleanup(u.keycloak.Close)

	u.site = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SessionPath {
			http.NotFound(w, r)
			return
		}
		var body struct {
			AccessToken string `json:"access_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		u.mu.Lock()
		u.exchanged = body.AccessToken
		u.mu.Unlock()
		_, _ = w.Write([]byte(`{"access_token":"gateway-token","refresh_token":"r"}`))
	}))
	t.Cleanup(u.site.Close)

	return u
}

func (u *upstreams) config() Config {
	return Config{
		KeycloakURL:   u.keycloak.URL,
		KeycloakRealm: "quantum",
		ClientID:      "gateway-client",
		ClientSecret:  "s3cret",
		SiteHost:      u.site.URL,
		Timeout:       5 * time.Second,
	}
}

func credentials() url.Values {
	return url.Values{"username": {"u"}, "password": {"p"}}
}

func TestExchangeReturnsSessionBodyVerbatim(t *testing.T) {
	u := newUpstreams(t, http.StatusOK)
	bridge := NewBridge(u.config(), nil)

	body, err := bridge.Exchange(context.Background(), credentials())
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if string(body) != `{"access_token":"gateway-token","refresh_token":"r"}` {
		t.Fatalf("body not relayed verbatim: %s", body)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.exchanged != "kc-access" {
		t.Fatalf("session endpoint got %q", u.exchanged)
	}
	want := map[string]string{
		"grant_type":    "password",
		"client_id":     "gateway-client",
		"client_secret": "s3cret",
		"scope":         "openid",
		"username":      "u",
		"password":      "p",
	}
	for k, v := range want {
		if got := u.tokenForm.Get(k); got != v {
			t.Errorf("token form %s = %q, want %q", k, got, v)
		}
	}
}

func TestExchangeRequestOverridesDefaults(t *testing.T) {
	u := newUpstreams(t, http.StatusOK)
	bridge := NewBridge(u.config(), nil)

	params := credentials()
	params.Set("grant_type", "client_credentials")
	params.Set("scope", "openid profile")
	if _, err := bridge.Exchange(context.Background(), params); err != nil {
		t.Fatalf("exchange: %v", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tokenForm.Get("grant_type") != "client_credentials" || u.tokenForm.Get("scope") != "openid profile" {
		t.Fatalf("request keys did not win: %v", u.tokenForm)
	}
}

func TestExchangeProviderNotConfigured(t *testing.T) {
	u := newUpstreams(t, http.StatusOK)
	cfg := u.config()
	cfg.KeycloakURL = ""

	_, err := NewBridge(cfg, nil).Exchange(context.Background(), credentials())
	if !qerr.IsCode(err, qerr.CodeNotConfigured) {
		t.Fatalf("expected not_configured, got %v", err)
	}
	if err.Error() != "not_configured: Oops. Provider was not configured correctly on a server side." {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestExchangeSiteHostNotConfigured(t *testing.T) {
	u := newUpstreams(t, http.StatusOK)
	cfg := u.config()
	cfg.SiteHost = ""

	_, err := NewBridge(cfg, nil).Exchange(context.Background(), credentials())
	if !qerr.IsCode(err, qerr.CodeNotConfigured) {
		t.Fatalf("expected not_configured, got %v", err)
	}
}

func TestExchangeKeycloakRejection(t *testing.T) {
	u := newUpstreams(t, http.StatusBadRequest)

	_, err := NewBridge(u.config(), nil).Exchange(context.Background(), credentials())
	if !qerr.IsCode(err, qerr.CodeUpstream) {
		t.Fatalf("expected upstream, got %v", err)
	}
	body, _ := qerr.UpstreamBody(err)
	if body != `{"error":"invalid_grant","error_description":"Invalid user credentials"}` {
		t.Fatalf("raw body not preserved: %q", body)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.exchanged != "" {
		t.Fatal("session endpoint must not be called after a rejection")
	}
}

func TestExchangeSessionRejection(t *testing.T) {
	u := newUpstreams(t, http.StatusOK)
	u.site.Close()
	u.site = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"keycloak rejected the access token"}`))
	}))
	t.Cleanup(u.site.Close)

	_, err := NewBridge(u.config(), nil).Exchange(context.Background(), credentials())
	body, ok := qerr.UpstreamBody(err)
	if !ok || body != `{"message":"keycloak rejected the access token"}` {
		t.Fatalf("expected raw session body, got %v", err)
	}
}

func TestParseParams(t *testing.T) {
	v, err := ParseParams("application/json", []byte(`{"username":"u","password":"p","otp":123456}`))
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if v.Get("username") != "u" || v.Get("otp") != "123456" {
		t.Fatalf("unexpected values %v", v)
	}

	v, err = ParseParams("application/x-www-form-urlencoded; charset=utf-8", []byte("username=u&password=p"))
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	if v.Get("password") != "p" {
		t.Fatalf("unexpected values %v", v)
	}

	if _, err := ParseParams("application/json", []byte(`["u","p"]`)); !qerr.IsCode(err, qerr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
