package iam

import (
	"context"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/qapi/schemas"
	"github.com/quatton/qgate/pkg/qerr"
)

type contextKey string

const principalKey contextKey = "principal"

// TokenValidator turns a bearer token into the user it was issued to.
type TokenValidator interface {
	ValidateToken(token string) (*schemas.User, error)
}

// Principal is the authenticated caller of a request. Token is the bearer
// token exactly as presented.
type Principal struct {
	User  schemas.User
	ID    uuid.UUID
	Token string
}

type IAMService struct {
	auth TokenValidator
}

func NewIAMService(auth TokenValidator) *IAMService {
	return &IAMService{auth: auth}
}

// Get returns the principal of the request, if any.
func (s *IAMService) Get(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// Require is Get for handlers that only serve authenticated callers.
func (s *IAMService) Require(ctx context.Context) (*Principal, error) {
	p, ok := s.Get(ctx)
	if !ok {
		return nil, qerr.Newf(qerr.CodeUnauthorized, "Authentication required")
	}
	return p, nil
}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
