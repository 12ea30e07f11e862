package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goformed/backoffice/internal/diagnostics"
)

// DiagnosticsHandler exposes the recorded diagnostics events read-only.
// GET /v1/diagnostics
func DiagnosticsHandler(svc *diagnostics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		events := svc.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"count":  len(events),
			"events": events,
		})
	}
}
