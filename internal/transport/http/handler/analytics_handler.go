package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"project-tracker/internal/service"
	"project-tracker/internal/transport/http/ez"
	"project-tracker/internal/transport/http/middleware"
)

type AnalyticsHandler struct {
	svc  *service.AnalyticsService
	auth gin.HandlerFunc
	log  *zap.Logger
}

func NewAnalyticsHandler(svc *service.AnalyticsService, auth gin.HandlerFunc, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, auth: auth, log: log}
}

func (h *AnalyticsHandler) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api.Group("/analytics", h.auth), h.log)
	ez.RegisterAction(e, ez.Action[struct{}, *service.Stats]{
		Method: http.MethodGet,
		Path:   "/stats",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.Stats, error) {
			return h.svc.Stats(c.Request.Context(), middleware.UserID(c))
		},
	})
}
