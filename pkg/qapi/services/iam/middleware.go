package iam

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/qlog"
)

// Middleware authenticates bearer tokens. Requests without a valid token pass
// through anonymously; handlers decide whether that is allowed.
func (s *IAMService) Middleware(logger *qlog.Logger) func(ctx huma.Context, next func(huma.Context)) {
	if logger == nil {
		logger = qlog.NewDiscard()
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		authHeader := ctx.Header("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				token := strings.TrimSpace(parts[1])
				if user, err := s.auth.ValidateToken(token); err == nil {
					id, _ := uuid.Parse(user.ID)
					logger.Debug("authenticated user", "login", user.Login, "email", user.Email)
					ctx = huma.WithValue(ctx, principalKey, &Principal{User: *user, ID: id, Token: token})
				} else {
					logger.Warn("invalid token", "error", err)
				}
			}
		}

		next(ctx)
	}
}
