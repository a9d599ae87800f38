package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/telemetry"
)

// ConnectionCounter reports live subscription connections.
type ConnectionCounter interface {
	Len() int
	ConnectionsForUser(userID string) int
}

var auditLevels = map[string]bool{"INFO": true, "WARN": true, "ERROR": true}

// RegisterDebugRoutes wires debug-only endpoints. Nothing is registered
// unless enabled.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, conns ConnectionCounter, enabled bool) {
	if !enabled {
		return
	}
	debug := router.Group("/debug")

	// audit-test pushes one audit record through the broker so operators can
	// check the messaging audit pipeline end to end.
	debug.GET("/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		level := strings.ToUpper(c.DefaultQuery("level", "INFO"))
		if !auditLevels[level] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "level must be INFO, WARN or ERROR"})
			return
		}
		text := "messaging audit check"
		if note := strings.TrimSpace(c.Query("note")); note != "" {
			text += ": " + note
		}

		requestID := requestIDFromContext(c)
		userID := userIDFromContext(c)
		emitter.Emit(c.Request.Context(), level, text, requestID, userID)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestID, "user_id": userID})
	})

	debug.GET("/connections", func(c *gin.Context) {
		if conns == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "connection hub not configured"})
			return
		}
		body := gin.H{"total": conns.Len()}
		if userID := userIDFromContext(c); userID != nil {
			body["mine"] = conns.ConnectionsForUser(*userID)
		}
		c.JSON(http.StatusOK, body)
	})
}
