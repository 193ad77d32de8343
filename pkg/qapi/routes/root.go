package routes

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qgate/pkg/qapi/services"
)

func RegisterAPI(api huma.API, svcs *services.Services) {
	RegisterHealth(api)
	if svcs == nil {
		return
	}
	RegisterIAM(api, svcs.IAM)
	RegisterAuthConfig(api, svcs.Auth, svcs.Logger)
	RegisterIdentity(api, svcs.Identity, svcs.Logger)
	RegisterPrograms(api, svcs.Programs, svcs.IAM, svcs.Logger)
	RegisterJobs(api, svcs.Jobs, svcs.IAM, svcs.Logger)
}
