package middleware

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// JSONBody guards write endpoints: bodies must be JSON and at most maxBytes.
// Requests without a body pass through so optional payloads stay optional.
func JSONBody(maxBytes int64) gin.HandlerFunc {
	tooLarge := gin.H{"error": "Request body exceeds " + strconv.FormatInt(maxBytes, 10) + " bytes"}
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.ContentLength == 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		if ct := c.GetHeader("Content-Type"); ct != "" {
			if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": "Content-Type must be application/json"})
				return
			}
		}

		// Chunked bodies report no length up front.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
