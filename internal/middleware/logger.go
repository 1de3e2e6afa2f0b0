package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the gin context key holding the request id.
const ContextKeyRequestID = "request_id"

// quietPaths are probe endpoints logged only when they fail.
var quietPaths = map[string]bool{"/health": true, "/readyz": true}

// RequestID reuses the caller's X-Request-ID or mints one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Logger writes one access line per request: route, status, body size, latency and client.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.Request.URL.Path
		if quietPaths[path] && status < http.StatusBadRequest {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = path
		}
		id := c.GetString(ContextKeyRequestID)
		log.Printf("middleware.Logger: [%s] %s %s %d %dB %s %s",
			id, c.Request.Method, route, status, c.Writer.Size(), time.Since(start).Round(time.Microsecond), c.ClientIP())
		for _, e := range c.Errors {
			log.Printf("middleware.Logger: [%s] handler error: %v", id, e.Err)
		}
	}
}

// Recovery turns a handler panic into a 500 in the API envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf("middleware.Recovery: [%s] panic: %v", c.GetString(ContextKeyRequestID), recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "internal server error"},
		})
	})
}
