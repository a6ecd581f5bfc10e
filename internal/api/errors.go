package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/internal/domain"
	"github.com/clinimetric-scale-server/internal/middleware"
)

// errorResponse is an APIError optionally carrying the validation report that
// caused it.
type errorResponse struct {
	*domain.APIError
	Report *domain.ValidationReport `json:"report,omitempty"`
}

// classifyError maps domain errors onto an HTTP status and error code.
func classifyError(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, domain.ErrCodeInvalidInput
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrCodeNotFound
	case errors.Is(err, domain.ErrEmptyResponses):
		return http.StatusBadRequest, domain.ErrCodeEmptyResponses
	case errors.Is(err, domain.ErrUnknownItem), errors.Is(err, domain.ErrUnmappableResponse):
		return http.StatusBadRequest, domain.ErrCodeInvalidInput
	case errors.Is(err, domain.ErrScaleNotActive):
		return http.StatusConflict, domain.ErrCodeScaleNotActive
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusUnprocessableEntity, domain.ErrCodeValidation
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrUnchangedContent):
		return http.StatusConflict, domain.ErrCodeLifecycle
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, domain.ErrCodeInternalServer
	default:
		return http.StatusInternalServerError, domain.ErrCodeInternalServer
	}
}

func (s *Server) respondError(c *gin.Context, err error, report *domain.ValidationReport) {
	status, code := classifyError(err)
	requestID := c.GetString(middleware.RequestIDKey)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       c.FullPath(),
		}).Error("Request failed")
		message = "Internal server error"
	}
	_ = c.Error(err)

	resp := errorResponse{APIError: domain.NewAPIError(code, message, "", requestID)}
	if report != nil && !report.IsValid {
		resp.Report = report
	}
	c.AbortWithStatusJSON(status, resp)
}

// respondDecodeError reports a body that could not be read or mapped onto the
// domain schema.
func (s *Server) respondDecodeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		s.respondError(c, err, nil)
		return
	}

	var tooLarge *http.MaxBytesError
	status := http.StatusBadRequest
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{APIError: domain.NewAPIError(
		domain.ErrCodeDefinitionParse, "Request body could not be parsed", err.Error(), c.GetString(middleware.RequestIDKey))})
}
