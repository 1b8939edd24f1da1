package utils

import (
	"github.com/gin-gonic/gin"
)

// Machine-readable codes for server-side failures so clients can branch on them.
const (
	CodePaymentServiceError = "PAYMENT_SERVICE_ERROR"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error           string       `json:"error"`
	Code            string       `json:"code,omitempty"`
	ReferenceNumber string       `json:"referenceNumber,omitempty"`
	Fields          []FieldIssue `json:"fields,omitempty"`
}

type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

func RespondMessage(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{Error: message})
}

// AbortWithMessage is RespondMessage for middlewares.
func AbortWithMessage(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: message})
}
