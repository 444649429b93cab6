package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var serverStart = time.Now()

// healthHandler reports liveness plus basic instance facts
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(serverStart).Seconds()),
		"fallback":       s.routeCfg.Fallback != "",
	})
}

// timeHandler reports the server's clock, useful for diagnosing TOTP
// drift against a client's authenticator app
func (s *Server) timeHandler(c *gin.Context) {
	now := time.Now().UTC()
	c.JSON(http.StatusOK, gin.H{
		"unix": now.Unix(),
		"utc":  now.Format(time.RFC3339),
	})
}
