package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ecocampus/ecocampus-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma body in the shared response envelope,
// so typed operations and plain chi handlers look the same on the wire.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if apiErr, ok := v.(*APIError); ok {
		return response.Envelope{
			Error:   apiErr.Message,
			Code:    apiErr.Code,
			Details: apiErr.Details,
			Retry:   apiErr.Retry,
		}, nil
	}
	if _, ok := v.(response.Envelope); ok {
		return v, nil
	}

	code, err := strconv.Atoi(status)
	if err != nil {
		code = 200
	}
	return response.Wrap(code, v), nil
}
