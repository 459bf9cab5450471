package apiutil

import (
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/common/errors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// RFC7807ErrorMiddleware renders the last error attached with c.Error as
// problem details, unless the handler already wrote a response.
func RFC7807ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last()

		var problemDetails *errors.ProblemDetails
		switch err.Type {
		case gin.ErrorTypeBind:
			problemDetails = errors.NewValidationError("Request binding failed: "+err.Error(), c.Request.URL.Path)
		default:
			problemDetails = errors.FromError(err.Err, c.Request.URL.Path)
		}
		RFC7807ErrorResponse(c, problemDetails)
		c.Abort()
	}
}

// GetTraceID returns the active span's trace ID, falling back to the
// X-Trace-ID header.
func GetTraceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return c.GetHeader("X-Trace-ID")
}

// RFC7807ErrorResponse writes an RFC 7807 compliant error response
func RFC7807ErrorResponse(c *gin.Context, problemDetails *errors.ProblemDetails) {
	if traceID := GetTraceID(c); traceID != "" {
		problemDetails.WithTraceID(traceID)
	}

	c.Header("Content-Type", "application/problem+json")
	c.JSON(problemDetails.Status, problemDetails)
}

// RFC7807FromError maps err and writes it as problem details
func RFC7807FromError(c *gin.Context, err error) {
	RFC7807ErrorResponse(c, errors.FromError(err, c.Request.URL.Path))
}

// RFC7807UnauthorizedResponse writes an unauthorized error response
func RFC7807UnauthorizedResponse(c *gin.Context, detail string) {
	RFC7807ErrorResponse(c, errors.NewUnauthorizedError(detail, c.Request.URL.Path))
}

// RFC7807ForbiddenResponse writes a forbidden error response
func RFC7807ForbiddenResponse(c *gin.Context, detail string) {
	RFC7807ErrorResponse(c, errors.NewForbiddenError(detail, c.Request.URL.Path))
}
