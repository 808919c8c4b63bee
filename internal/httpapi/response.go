package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/logging"
)

// APIError is the body of every failed request.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// respondError writes err with the status of its kind. Internal errors
// are logged and their message is not exposed.
func respondError(c *gin.Context, err error) {
	status := lcaerr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		logging.FromContext(ctx).Error().
			Ctx(ctx).
			Str("component", "httpapi").
			Str("path", c.FullPath()).
			Err(err).
			Msg("request failed")
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Message: msg, Code: lcaerr.CodeOf(err)},
	})
}

// badRequest reports a malformed body or parameter.
func badRequest(c *gin.Context, code string, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorEnvelope{
		Error: APIError{Message: err.Error(), Code: code},
	})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
