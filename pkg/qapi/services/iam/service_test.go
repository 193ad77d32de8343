package iam

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/qapi/schemas"
	"github.com/quatton/qgate/pkg/qerr"
)

type staticValidator map[string]schemas.User

func (v staticValidator) ValidateToken(token string) (*schemas.User, error) {
	u, ok := v[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &u, nil
}

func TestRequireWithoutPrincipal(t *testing.T) {
	svc := NewIAMService(staticValidator{})

	if _, err := svc.Require(context.Background()); !qerr.IsCode(err, qerr.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestRequireWithPrincipal(t *testing.T) {
	svc := NewIAMService(staticValidator{})
	id := uuid.New()
	ctx := WithPrincipal(context.Background(), &Principal{ID: id, Token: "tok"})

	p, err := svc.Require(ctx)
	if err != nil {
		t.Fatalf("require: %v", err)
	}
	if p.ID != id || p.Token != "tok" {
		t.Fatalf("unexpected principal %+v", p)
	}
}
