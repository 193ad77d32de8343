package qsdk

import (
	"testing"

	"github.com/zalando/go-keyring"
)

func TestTokensRoundTrip(t *testing.T) {
	keyring.MockInit()

	if err := SaveTokens("http://Gateway.example.org/", "access-1", "refresh-1"); err != nil {
		t.Fatalf("save: %v", err)
	}

	access, refresh := LoadTokens("http://gateway.example.org")
	if access != "access-1" || refresh != "refresh-1" {
		t.Fatalf("got %q/%q", access, refresh)
	}

	if err := SaveTokens("http://gateway.example.org", "access-2", ""); err != nil {
		t.Fatalf("save without refresh: %v", err)
	}
	access, refresh = LoadTokens("http://gateway.example.org")
	if access != "access-2" || refresh != "" {
		t.Fatalf("stale refresh token kept: %q/%q", access, refresh)
	}
}

func TestDeleteMissingTokenIsNoop(t *testing.T) {
	keyring.MockInit()

	if err := DeleteToken("http://nowhere"); err != nil {
		t.Fatalf("delete access: %v", err)
	}
	if err := DeleteRefreshToken("http://nowhere"); err != nil {
		t.Fatalf("delete refresh: %v", err)
	}
}
