package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"project-tracker/internal/realtime"
)

// WebSocket upgrades GET /ws and hands the connection to the hub.
func WebSocket(hub *realtime.Hub, origins []string, log *zap.Logger) gin.HandlerFunc {
	up := realtime.NewUpgrader(origins)
	return func(c *gin.Context) {
		ws, err := up.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the error response
			log.Debug("ws upgrade failed", zap.Error(err))
			return
		}
		hub.Serve(ws)
	}
}
