// Package ez registers gin handlers as typed actions: bind the input, run
// the handler, map its error to a status and a {"message"} body.
package ez

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"project-tracker/internal/core/apperr"
	"project-tracker/internal/transport/http/middleware"
	resp "project-tracker/internal/transport/http/response"
)

type Binder string

const (
	BindJSON Binder = "json" // request body
	BindNone Binder = "none" // handler reads c.Param itself
)

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, log *zap.Logger) EZ {
	if log == nil {
		log = zap.NewNop()
	}
	return EZ{g: g, log: log}
}

// Action describes one endpoint. I is the bound input, O the response body.
type Action[I any, O any] struct {
	Method  string
	Path    string
	Binder  Binder
	Status  int // success status, 200 when zero
	// ZeroOnBindError runs Handler with an empty input instead of answering
	// 400, so the handler's own validation decides the response.
	ZeroOnBindError bool
	Handler         func(c *gin.Context, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		var in I
		if a.Binder == BindJSON {
			if err := c.ShouldBindJSON(&in); err != nil {
				if !a.ZeroOnBindError {
					resp.Abort(c, http.StatusBadRequest, resp.MsgBadBody)
					return
				}
				in = *new(I)
			}
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			if apperr.CodeOf(err) >= http.StatusInternalServerError {
				e.log.Error("request failed",
					zap.String("rid", c.GetString(middleware.KeyRequestID)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.FullPath()),
					zap.Error(err),
				)
			}
			resp.AbortErr(c, err)
			return
		}
		c.JSON(status, out)
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}
