package routes

import (
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qgate/pkg/qerr"
	"github.com/quatton/qgate/pkg/qlog"
)

// MessageError is rendered as {"message": ...}. Upstream bodies and server
// configuration problems use it.
type MessageError struct {
	status  int
	Message string `json:"message"`
}

func (e *MessageError) Error() string  { return e.Message }
func (e *MessageError) GetStatus() int { return e.status }

// apiError maps a service error onto an HTTP error.
func apiError(logger *qlog.Logger, err error) error {
	msg := qerr.Message(err)

	switch qerr.CodeOf(err) {
	case qerr.CodeValidation:
		fields := qerr.Fields(err)
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		details := make([]error, 0, len(names))
		for _, name := range names {
			details = append(details, &huma.ErrorDetail{
				Message:  fields[name],
				Location: "body." + name,
			})
		}
		return huma.Error400BadRequest("validation failed", details...)
	case qerr.CodeNoResources:
		return huma.Error400BadRequest(msg)
	case qerr.CodeNotFound:
		return huma.Error404NotFound(msg)
	case qerr.CodeNotSubmitted:
		return huma.Error409Conflict(msg)
	case qerr.CodeUnauthorized:
		return huma.Error401Unauthorized(msg)
	case qerr.CodeUpstream:
		body, _ := qerr.UpstreamBody(err)
		return &MessageError{status: http.StatusBadRequest, Message: body}
	case qerr.CodeNotConfigured:
		return &MessageError{status: http.StatusNotImplemented, Message: msg}
	}

	if logger != nil {
		logger.Error("request failed", "error", err)
	}
	return huma.Error500InternalServerError("internal server error")
}
