package controllers

import (
	"errors"
	"net/http"

	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
)

// respondServiceError writes the HTTP response for an error returned by a
// service. reference is echoed back when the order already exists.
func respondServiceError(c *gin.Context, err error, reference string) {
	status, body := classify(err)
	body.ReferenceNumber = reference
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func classify(err error) (int, utils.ErrorResponse) {
	var (
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		gatewayErr    *services.GatewayError
		storeErr      *services.StoreError
		authErr       *services.AuthError
		conflictErr   *services.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		issues := make([]utils.FieldIssue, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			issues = append(issues, utils.FieldIssue{Field: f.Field, Message: f.Message})
		}
		return http.StatusBadRequest, utils.ErrorResponse{Error: "validation failed", Fields: issues}

	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, utils.ErrorResponse{Error: notFoundErr.Error()}

	case errors.As(err, &gatewayErr):
		return gatewayStatus(gatewayErr), utils.ErrorResponse{
			Error: "payment service is unavailable, please try again",
			Code:  utils.CodePaymentServiceError,
		}

	case errors.As(err, &storeErr):
		status := http.StatusInternalServerError
		if storeErr.Unavailable() {
			status = http.StatusServiceUnavailable
		}
		return status, utils.ErrorResponse{Error: "could not reach the order database", Code: utils.CodeDatabaseError}

	case errors.As(err, &authErr):
		return http.StatusUnauthorized, utils.ErrorResponse{Error: "unauthorized"}

	case errors.As(err, &conflictErr):
		return http.StatusConflict, utils.ErrorResponse{Error: conflictErr.Message}

	default:
		return http.StatusInternalServerError, utils.ErrorResponse{Error: "internal server error", Code: utils.CodeInternalError}
	}
}

// gatewayStatus: no response or an upstream 5xx is our 503 (502/503/504 pass
// through as they are); an upstream 4xx is a bad gateway.
func gatewayStatus(err *services.GatewayError) int {
	switch {
	case err.StatusCode == 0:
		return http.StatusServiceUnavailable
	case err.StatusCode == http.StatusBadGateway,
		err.StatusCode == http.StatusServiceUnavailable,
		err.StatusCode == http.StatusGatewayTimeout:
		return err.StatusCode
	case err.StatusCode >= 500 || err.StatusCode == http.StatusTooManyRequests:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
