package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID carries the request id in and out of the API.
	HeaderRequestID = "X-Request-ID"

	contextKeyRequestID = "request_id"
)

// requestID returns the id assigned to the current request, empty when the
// RequestID middleware is not installed.
func requestID(c *gin.Context) string {
	return c.GetString(contextKeyRequestID)
}

// RequestID tags every request with an id for log correlation. A caller-
// supplied X-Request-ID is honored so ids survive across service hops.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(contextKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}
