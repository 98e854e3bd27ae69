package mw

import "github.com/gin-gonic/gin"

// DeviceCORS sets the permissive cross-origin headers every device
// response carries. The embedded clients ignore them; browser-based
// diagnostics tools rely on them.
func DeviceCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Next()
	}
}
