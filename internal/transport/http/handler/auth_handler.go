package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"project-tracker/internal/service"
	"project-tracker/internal/transport/http/ez"
)

type AuthHandler struct {
	svc *service.AuthService
	log *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

func (h *AuthHandler) Priority() int { return 10 }

type registerIn struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginIn struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api.Group("/auth"), h.log)

	ez.RegisterAction(e, ez.Action[registerIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/register",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *registerIn) (*service.AuthResult, error) {
			return h.svc.Register(c.Request.Context(), in.Username, in.Email, in.Password)
		},
	})

	ez.RegisterAction(e, ez.Action[loginIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		// an unreadable body is just missing credentials
		ZeroOnBindError: true,
		Handler:         func(c *gin.Context, in *loginIn) (*service.AuthResult, error) {
			return h.svc.Login(c.Request.Context(), in.Email, in.Password)
		},
	})
}
