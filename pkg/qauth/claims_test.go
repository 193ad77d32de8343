package qauth

import (
	"reflect"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestFromClaimsRoundTrip(t *testing.T) {
	uc := &UserClaims{
		ID:         "0b7f6c1e-2f8e-4d0a-9a51-6a3f0c1b2d3e",
		Login:      "alice",
		Name:       "Alice",
		Email:      "alice@example.com",
		Provider:   "keycloak",
		ProviderID: "f:realm:alice",
		Iss:        "qgate",
		Iat:        1000,
		Exp:        2000,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ToClaims(uc))
	tokenStr, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	parsed, err := FromToken(tokenStr)
	if err != nil {
		t.Fatalf("FromToken error: %v", err)
	}
	if !reflect.DeepEqual(parsed, uc) {
		t.Fatalf("parsed claims mismatch\nexpected=%#v\nparsed=%#v", uc, parsed)
	}
}

func TestFromTokenRejectsMalformed(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := FromToken(tok); err == nil {
			t.Errorf("FromToken(%q) succeeded, want error", tok)
		}
	}
}

func TestFromMapClaimsHandlesNumericSub(t *testing.T) {
	mc := jwt.MapClaims{
		"sub":          float64(42),
		"login":        "bob",
		"provider":     "keycloak",
		"provider_sub": float64(7),
		"iat":          float64(1600),
		"exp":          float64(2600),
	}

	uc, err := FromMapClaims(mc)
	if err != nil {
		t.Fatalf("FromMapClaims error: %v", err)
	}
	if uc.ID != "42" {
		t.Fatalf("expected ID 42 got %s", uc.ID)
	}
	if uc.ProviderID != "7" {
		t.Fatalf("expected ProviderID 7 got %s", uc.ProviderID)
	}
	if uc.Exp != 2600 {
		t.Fatalf("expected exp 2600 got %d", uc.Exp)
	}
}

func TestToClaimsOmitsEmpty(t *testing.T) {
	mc := ToClaims(&UserClaims{ID: "1", Login: "x"})
	if _, ok := mc["name"]; ok {
		t.Fatal("expected name to be omitted when empty")
	}
	if mc["sub"] != "1" {
		t.Fatalf("expected sub 1, got %v", mc["sub"])
	}
}

func TestIsTokenExpired(t *testing.T) {
	sign := func(exp time.Time) string {
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, ToClaims(&UserClaims{ID: "1", Exp: exp.Unix()})).SignedString([]byte("k"))
		return s
	}

	if expired, _ := IsTokenExpired("", 0); !expired {
		t.Error("empty token should count as expired")
	}
	if expired, _ := IsTokenExpired(sign(time.Now().Add(time.Hour)), time.Minute); expired {
		t.Error("token valid for an hour reported expired")
	}
	if expired, _ := IsTokenExpired(sign(time.Now().Add(10*time.Second)), time.Minute); !expired {
		t.Error("token inside the skew window should be expired")
	}
}
