package schemas

// RefreshTokenRequest represents the payload for requesting a new access token.
type RefreshTokenRequest struct {
	Body struct {
		RefreshToken string `json:"refresh_token" doc:"Refresh token issued from login or previous refresh"`
	}
}

// RefreshTokenResponse contains a newly minted access token and refresh token.
type RefreshTokenResponse struct {
	Body struct {
		AccessToken  string `json:"access_token" doc:"New short-lived access token"`
		RefreshToken string `json:"refresh_token" doc:"Rotated refresh token"`
		TokenType    string `json:"token_type" doc:"Token type descriptor" example:"bearer"`
		ExpiresIn    int    `json:"expires_in" doc:"Access token lifetime in seconds"`
	}
}

// Session is what a successful Keycloak session exchange returns.
type Session struct {
	AccessToken  string `json:"access_token" doc:"Gateway access token"`
	RefreshToken string `json:"refresh_token" doc:"Refresh token for /api/auth/refresh"`
	TokenType    string `json:"token_type" doc:"Token type descriptor" example:"bearer"`
	ExpiresIn    int    `json:"expires_in" doc:"Access token lifetime in seconds"`
	User         User   `json:"user" doc:"The signed-in user"`
}

// KeycloakSessionRequest trades a Keycloak access token for a gateway session.
type KeycloakSessionRequest struct {
	Body struct {
		AccessToken string `json:"access_token" minLength:"1" doc:"Access token issued by Keycloak"`
	}
}

type KeycloakSessionResponse struct {
	Body Session
}

// KeycloakTokenRequest carries the caller's credentials verbatim. JSON objects
// and urlencoded forms are accepted; every key is forwarded to Keycloak.
type KeycloakTokenRequest struct {
	ContentType string `header:"Content-Type"`
	RawBody     []byte
}

// KeycloakTokenResponse relays the session exchange body untouched.
type KeycloakTokenResponse struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// MessageResponse is used for plain human-readable answers.
type MessageResponse struct {
	Body struct {
		Message string `json:"message" doc:"Human readable message"`
	}
}
