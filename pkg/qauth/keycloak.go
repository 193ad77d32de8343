package qauth

import (
	"strings"

	"golang.org/x/oauth2"
)

// ProviderKeycloak is the provider name stored on users created from Keycloak.
const ProviderKeycloak = "keycloak"

// KeycloakRealmURL is the base of a realm's OpenID Connect endpoints.
func KeycloakRealmURL(baseURL, realm string) string {
	return strings.TrimRight(baseURL, "/") + "/realms/" + realm + "/protocol/openid-connect"
}

// KeycloakEndpoint returns the OAuth2 endpoints of a realm. The token URL keeps
// its trailing slash.
func KeycloakEndpoint(baseURL, realm string) oauth2.Endpoint {
	base := KeycloakRealmURL(baseURL, realm)
	return oauth2.Endpoint{
		AuthURL:   base + "/auth",
		TokenURL:  base + "/token/",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// KeycloakUserInfoURL is the OIDC userinfo endpoint of a realm.
func KeycloakUserInfoURL(baseURL, realm string) string {
	return KeycloakRealmURL(baseURL, realm) + "/userinfo"
}
