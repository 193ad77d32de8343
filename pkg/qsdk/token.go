package qsdk

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService        = "qgate"
	keyringRefreshService = "qgate-refresh"
)

// normalizeKey converts a baseURL into a stable key name for keyring storage.
// It trims trailing slashes and lowercases so https://example.com/ and
// https://example.com share an entry.
func normalizeKey(baseURL string) string {
	s := strings.TrimSpace(baseURL)
	s = strings.TrimRight(s, "/")
	s = strings.ToLower(s)
	if s == "" {
		return "default"
	}
	return s
}

// SaveToken stores the access token for baseURL in the OS keyring.
func SaveToken(baseURL string, token string) error {
	return keyring.Set(keyringService, normalizeKey(baseURL), token)
}

// LoadToken retrieves the access token stored for baseURL.
func LoadToken(baseURL string) (string, error) {
	return keyring.Get(keyringService, normalizeKey(baseURL))
}

func DeleteToken(baseURL string) error {
	return ignoreNotFound(keyring.Delete(keyringService, normalizeKey(baseURL)))
}

func SaveRefreshToken(baseURL string, token string) error {
	return keyring.Set(keyringRefreshService, normalizeKey(baseURL), token)
}

func LoadRefreshToken(baseURL string) (string, error) {
	return keyring.Get(keyringRefreshService, normalizeKey(baseURL))
}

func DeleteRefreshToken(baseURL string) error {
	return ignoreNotFound(keyring.Delete(keyringRefreshService, normalizeKey(baseURL)))
}

// SaveTokens stores both halves of a session. An empty refresh token removes
// any stale one.
func SaveTokens(baseURL, access, refresh string) error {
	if err := SaveToken(baseURL, access); err != nil {
		return err
	}
	if refresh == "" {
		return DeleteRefreshToken(baseURL)
	}
	return SaveRefreshToken(baseURL, refresh)
}

// LoadTokens returns whatever is stored for baseURL. Missing entries come back
// empty.
func LoadTokens(baseURL string) (access, refresh string) {
	access, _ = LoadToken(baseURL)
	refresh, _ = LoadRefreshToken(baseURL)
	return access, refresh
}

func ignoreNotFound(err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
