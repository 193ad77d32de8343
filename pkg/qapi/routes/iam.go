package routes

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qgate/pkg/qapi/schemas"
	"github.com/quatton/qgate/pkg/qapi/services/iam"
)

func RegisterIAM(api huma.API, svc *iam.IAMService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      "GET",
		Path:        "/api/me",
		Summary:     "Get current user",
		Description: "Retrieves information about the currently authenticated user",
		Tags: []string{
			TagIam.String(),
		},
		Security: BearerAuth,
	}, func(ctx context.Context, input *struct{}) (*schemas.MeResponse, error) {
		p, ok := svc.Get(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized(
				"Authentication required",
			)
		}
		resp := &schemas.MeResponse{}
		resp.Body.User = p.User
		return resp, nil
	})
}
