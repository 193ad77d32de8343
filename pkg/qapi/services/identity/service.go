// Package identity trades a username and password for a gateway session. The
// password grant goes to Keycloak; the resulting access token is then
// exchanged at the gateway's own session endpoint, reached through SITE_HOST.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quatton/qgate/pkg/qauth"
	"github.com/quatton/qgate/pkg/qerr"
	"github.com/quatton/qgate/pkg/qlog"
	"golang.org/x/oauth2"
)

// SessionPath is where the gateway exchanges a Keycloak access token.
const SessionPath = "/api/auth/keycloak"

// Config is built once from the environment.
type Config struct {
	KeycloakURL   string
	KeycloakRealm string
	ClientID      string
	ClientSecret  string
	// SiteHost is the gateway's public base URL.
	SiteHost string
	// Timeout bounds each of the two upstream calls.
	Timeout time.Duration
}

// Bridge is the token exchange service.
type Bridge struct {
	cfg    Config
	oauth  *oauth2.Config
	http   *http.Client
	logger *qlog.Logger
}

func NewBridge(cfg Config, logger *qlog.Logger) *Bridge {
	if logger == nil {
		logger = qlog.NewDiscard()
	}
	b := &Bridge{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
	if cfg.KeycloakURL != "" && cfg.KeycloakRealm != "" {
		b.oauth = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     qauth.KeycloakEndpoint(cfg.KeycloakURL, cfg.KeycloakRealm),
			Scopes:       []string{"openid"},
		}
	}
	return b
}

// defaults are sent unless the caller supplies the same key.
func (b *Bridge) defaults() url.Values {
	v := url.Values{}
	v.Set("grant_type", "password")
	if b.oauth != nil {
		v.Set("client_id", b.oauth.ClientID)
		v.Set("client_secret", b.oauth.ClientSecret)
		v.Set("scope", strings.Join(b.oauth.Scopes, " "))
	} else {
		v.Set("client_id", b.cfg.ClientID)
		v.Set("client_secret", b.cfg.ClientSecret)
		v.Set("scope", "openid")
	}
	return v
}

// Exchange runs both legs and returns the session endpoint's body verbatim.
// Any key in params, grant_type included, overrides the defaults.
func (b *Bridge) Exchange(ctx context.Context, params url.Values) ([]byte, error) {
	payload := b.defaults()
	for k, vs := range params {
		payload[k] = vs
	}

	if b.oauth == nil {
		return nil, qerr.Newf(qerr.CodeNotConfigured, "Oops. Provider was not configured correctly on a server side.")
	}

	body, err := b.post(ctx, b.oauth.Endpoint.TokenURL, "application/x-www-form-urlencoded", strings.NewReader(payload.Encode()))
	if err != nil {
		return nil, err
	}

	var token struct {
		AccessToken *string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decoding keycloak token response: %w", err)
	}

	if b.cfg.SiteHost == "" {
		return nil, qerr.Newf(qerr.CodeNotConfigured, "Oops. Application was not configured correctly on a server side.")
	}

	exchange, err := json.Marshal(map[string]*string{"access_token": token.AccessToken})
	if err != nil {
		return nil, err
	}
	sessionURL := strings.TrimRight(b.cfg.SiteHost, "/") + SessionPath
	return b.post(ctx, sessionURL, "application/json", bytes.NewReader(exchange))
}

// post returns the body of a 2xx answer. Anything else becomes an upstream
// error carrying the raw body.
func (b *Bridge) post(ctx context.Context, target, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response of %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b.logger.Warn("token exchange rejected", "url", target, "status", resp.StatusCode)
		return nil, qerr.Upstream(resp.StatusCode, string(data))
	}
	return data, nil
}

// ParseParams reads the caller's credentials from a JSON object or an
// urlencoded form.
func ParseParams(contentType string, body []byte) (url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" {
		v, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, qerr.Validation(qerr.FieldErrors{"body": "Malformed form data."})
		}
		return v, nil
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return url.Values{}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, qerr.Validation(qerr.FieldErrors{"body": "Expected a JSON object."})
	}

	v := url.Values{}
	for k, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			v.Set(k, s)
			continue
		}
		v.Set(k, string(msg))
	}
	return v, nil
}
