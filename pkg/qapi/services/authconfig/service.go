package authconfig

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/kv"
	"github.com/quatton/qgate/pkg/qapi/schemas"
	"github.com/quatton/qgate/pkg/qapi/services/store"
	"github.com/quatton/qgate/pkg/qauth"
	"github.com/quatton/qgate/pkg/qerr"
	"github.com/quatton/qgate/pkg/qlog"
	"golang.org/x/oauth2"
)

const (
	// TokenAudience is the expected audience claim for access tokens.
	TokenAudience = "qgate"
	tokenIssuer   = "qgate"

	kvPrefixRefresh = "auth:refresh:"
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// Config is the session configuration, built once from the environment.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	KeycloakURL   string
	KeycloakRealm string
	// Timeout bounds every call to Keycloak.
	Timeout time.Duration
}

// AuthService mints and validates the gateway's own JWTs and turns Keycloak
// access tokens into gateway sessions.
type AuthService struct {
	cfg       Config
	jwtSecret []byte
	users     store.Users
	kv        kv.Store
	http      *http.Client
	logger    *qlog.Logger
}

// KeycloakUser is the subset of the OIDC userinfo answer we keep.
type KeycloakUser struct {
	Sub               string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
}

func NewAuthService(cfg Config, users store.Users, kvStore kv.Store, logger *qlog.Logger) *AuthService {
	if logger == nil {
		logger = qlog.NewDiscard()
	}
	if cfg.KeycloakURL == "" || cfg.KeycloakRealm == "" {
		logger.Info("keycloak not configured", "hint", "set KEYCLOAK_URL and KEYCLOAK_REALM to enable")
	}
	return &AuthService{
		cfg:       cfg,
		jwtSecret: []byte(cfg.Secret),
		users:     users,
		kv:        kvStore,
		http:      &http.Client{},
		logger:    logger,
	}
}

// AccessTokenTTL is the access token lifetime in seconds.
func (s *AuthService) AccessTokenTTL() int {
	return int(s.cfg.AccessTTL / time.Second)
}

func (s *AuthService) keycloakConfigured() bool {
	return s.cfg.KeycloakURL != "" && s.cfg.KeycloakRealm != ""
}

// KeycloakUserInfo asks Keycloak who owns accessToken. A token Keycloak does
// not accept is reported as unauthorized.
func (s *AuthService) KeycloakUserInfo(ctx context.Context, accessToken string) (*KeycloakUser, error) {
	if !s.keycloakConfigured() {
		return nil, qerr.Newf(qerr.CodeNotConfigured, "Oops. Provider was not configured correctly on a server side.")
	}

	// The oauth2 client drops http.Client.Timeout, so the bound lives on ctx.
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, qauth.KeycloakUserInfoURL(s.cfg.KeycloakURL, s.cfg.KeycloakRealm), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keycloak userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Warn("keycloak rejected access token", "status", resp.StatusCode, "body", string(body))
		return nil, qerr.Newf(qerr.CodeUnauthorized, "keycloak rejected the access token")
	}

	var user KeycloakUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding keycloak userinfo: %w", err)
	}
	if user.Sub == "" {
		return nil, qerr.Newf(qerr.CodeUnauthorized, "keycloak userinfo has no subject")
	}
	return &user, nil
}

// KeycloakSession exchanges a Keycloak access token for a gateway session,
// creating the local user on first sign-in.
func (s *AuthService) KeycloakSession(ctx context.Context, accessToken string) (*schemas.Session, error) {
	kcUser, err := s.KeycloakUserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	login := kcUser.PreferredUsername
	if login == "" {
		login = kcUser.Sub
	}
	user, err := s.users.FindOrCreateUser(ctx, store.Identity{
		Provider:   qauth.ProviderKeycloak,
		ProviderID: kcUser.Sub,
		Login:      login,
		Name:       kcUser.Name,
		Email:      kcUser.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("syncing keycloak user: %w", err)
	}

	s.logger.Info("keycloak sign-in", "login", user.Login, "user_id", user.ID)
	return s.session(ctx, user)
}

// RefreshTokens consumes a refresh token and issues a new pair. A refresh
// token works once.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*schemas.Session, error) {
	data, err := s.kv.GetDel(ctx, kvPrefixRefresh+hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, qerr.New(qerr.CodeUnauthorized, ErrInvalidRefreshToken)
		}
		return nil, err
	}

	userID, err := uuid.Parse(string(data))
	if err != nil {
		return nil, qerr.New(qerr.CodeUnauthorized, ErrInvalidRefreshToken)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if qerr.IsCode(err, qerr.CodeNotFound) {
			return nil, qerr.New(qerr.CodeUnauthorized, ErrInvalidRefreshToken)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return s.session(ctx, user)
}

func (s *AuthService) session(ctx context.Context, user *models.User) (*schemas.Session, error) {
	access, refresh, err := s.IssueTokensWithRefresh(ctx, user)
	if err != nil {
		return nil, err
	}
	return &schemas.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    s.AccessTokenTTL(),
		User:         ToSchemaUser(user),
	}, nil
}

// ToSchemaUser converts a stored user into its API shape.
func ToSchemaUser(user *models.User) schemas.User {
	return schemas.User{
		ID:    user.ID.String(),
		Login: user.Login,
		Name:  user.Name,
		Email: user.Email,
	}
}

// IssueToken mints an access token for user. The provider binding travels in
// its own claims so the local login can change.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	uc := &qauth.UserClaims{
		ID:         user.ID.String(),
		Login:      user.Login,
		Name:       user.Name,
		Email:      user.Email,
		Provider:   user.Provider,
		ProviderID: user.ProviderID,
		Iss:        tokenIssuer,
		Aud:        TokenAudience,
		Iat:        now.Unix(),
		Exp:        now.Add(s.cfg.AccessTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, qauth.ToClaims(uc))
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) IssueTokensWithRefresh(ctx context.Context, user *models.User) (accessToken string, refreshToken string, err error) {
	accessToken, err = s.IssueToken(user)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.createRefreshToken(ctx, user.ID.String())
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (s *AuthService) createRefreshToken(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	if err := s.kv.Set(ctx, kvPrefixRefresh+hashToken(raw), []byte(userID), s.cfg.RefreshTTL); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return raw, nil
}

// Only the hash of a refresh token is stored.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateToken verifies an access token and returns the user it was issued
// to. It enforces HMAC signing and the gateway audience.
func (s *AuthService) ValidateToken(tokenString string) (*schemas.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithAudience(TokenAudience), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	uc, err := qauth.FromMapClaims(claims)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(uc.ID); err != nil {
		return nil, fmt.Errorf("invalid subject %q", uc.ID)
	}

	return &schemas.User{
		ID:    uc.ID,
		Login: uc.Login,
		Name:  uc.Name,
		Email: uc.Email,
	}, nil
}
