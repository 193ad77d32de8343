package routes

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qgate/pkg/qapi/schemas"
	"github.com/quatton/qgate/pkg/qapi/services/authconfig"
	"github.com/quatton/qgate/pkg/qapi/services/identity"
	"github.com/quatton/qgate/pkg/qlog"
)

func RegisterAuthConfig(api huma.API, svc *authconfig.AuthService, logger *qlog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-keycloak-session",
		Method:      http.MethodPost,
		Path:        identity.SessionPath,
		Summary:     "Exchange a Keycloak token",
		Description: "Validates a Keycloak access token and returns a gateway session",
		Tags:        []string{TagIam.String()},
	}, func(ctx context.Context, input *schemas.KeycloakSessionRequest) (*schemas.KeycloakSessionResponse, error) {
		session, err := svc.KeycloakSession(ctx, input.Body.AccessToken)
		if err != nil {
			return nil, apiError(logger, err)
		}
		return &schemas.KeycloakSessionResponse{Body: *session}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-refresh",
		Method:      http.MethodPost,
		Path:        "/api/auth/refresh",
		Summary:     "Refresh access token",
		Description: "Exchanges a valid refresh token for a new access token and rotated refresh token",
		Tags:        []string{TagIam.String()},
	}, func(ctx context.Context, input *schemas.RefreshTokenRequest) (*schemas.RefreshTokenResponse, error) {
		if input.Body.RefreshToken == "" {
			return nil, huma.Error400BadRequest("refresh_token is required")
		}

		session, err := svc.RefreshTokens(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, apiError(logger, err)
		}

		resp := &schemas.RefreshTokenResponse{}
		resp.Body.AccessToken = session.AccessToken
		resp.Body.RefreshToken = session.RefreshToken
		resp.Body.TokenType = session.TokenType
		resp.Body.ExpiresIn = session.ExpiresIn
		return resp, nil
	})
}

// RegisterIdentity exposes the username/password bridge. It is public.
func RegisterIdentity(api huma.API, bridge *identity.Bridge, logger *qlog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-keycloak-token",
		Method:      http.MethodPost,
		Path:        "/api/auth/keycloak-token",
		Summary:     "Sign in with username and password",
		Description: "Runs the Keycloak password grant and returns the gateway session. Every body key is forwarded to Keycloak.",
		Tags:        []string{TagIam.String()},
	}, func(ctx context.Context, input *schemas.KeycloakTokenRequest) (*schemas.KeycloakTokenResponse, error) {
		params, err := identity.ParseParams(input.ContentType, input.RawBody)
		if err != nil {
			return nil, apiError(logger, err)
		}

		body, err := bridge.Exchange(ctx, params)
		if err != nil {
			return nil, apiError(logger, err)
		}
		return &schemas.KeycloakTokenResponse{ContentType: "application/json", Body: body}, nil
	})
}
