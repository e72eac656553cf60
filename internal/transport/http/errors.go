package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"live-quiz-service/internal/domain"
)

var kindStatus = map[domain.Kind]int{
	domain.KindNotFound:   http.StatusNotFound,
	domain.KindValidation: http.StatusBadRequest,
	domain.KindConflict:   http.StatusConflict,
	domain.KindUpstream:   http.StatusBadGateway,
	domain.KindInternal:   http.StatusInternalServerError,
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func statusFor(kind domain.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// writeError renders err as {success:false, error, code}. Internal details never reach the client.
func writeError(c *gin.Context, err error) {
	e := domain.AsError(err)
	if e.Kind == domain.KindInternal {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(statusFor(e.Kind), errorResponse{
		Success: false,
		Error:   e.Message,
		Code:    e.Code,
	})
}

// bindError turns a request decoding failure into a validation error.
func bindError(err error) error {
	return domain.ErrMalformedRequest.WithMessagef("invalid request body").WithCause(err)
}
