package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"project-tracker/internal/domain"
	"project-tracker/internal/service"
	"project-tracker/internal/transport/http/ez"
	"project-tracker/internal/transport/http/middleware"
)

type ProjectHandler struct {
	svc  *service.ProjectService
	auth gin.HandlerFunc
	log  *zap.Logger
}

func NewProjectHandler(svc *service.ProjectService, auth gin.HandlerFunc, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, auth: auth, log: log}
}

type createProjectIn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Technology  string `json:"technology"`
}

// updateProjectIn keeps absent fields nil so they are left untouched.
// Any owner field in the body is ignored.
type updateProjectIn struct {
	Name          *string   `json:"name"`
	Description   *string   `json:"description"`
	Technology    *string   `json:"technology"`
	Status        *string   `json:"status"`
	Collaborators *[]string `json:"collaborators"`
}

func (in *updateProjectIn) patch() domain.ProjectPatch {
	p := domain.ProjectPatch{
		Name:          in.Name,
		Description:   in.Description,
		Technology:    in.Technology,
		Collaborators: in.Collaborators,
	}
	if in.Status != nil {
		s := domain.Status(*in.Status)
		p.Status = &s
	}
	return p
}

func (h *ProjectHandler) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api.Group("/projects", h.auth), h.log)

	ez.RegisterAction(e, ez.Action[struct{}, []service.ProjectView]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]service.ProjectView, error) {
			return h.svc.ListVisible(c.Request.Context(), middleware.UserID(c))
		},
	})

	ez.RegisterAction(e, ez.Action[createProjectIn, *service.ProjectView]{
		Method: http.MethodPost,
		Path:   "",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *createProjectIn) (*service.ProjectView, error) {
			return h.svc.Create(c.Request.Context(), middleware.UserID(c), service.CreateProjectInput{
				Name:        in.Name,
				Description: in.Description,
				Technology:  in.Technology,
			})
		},
	})

	ez.RegisterAction(e, ez.Action[updateProjectIn, *service.ProjectView]{
		Method: http.MethodPut,
		Path:   "/:id",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *updateProjectIn) (*service.ProjectView, error) {
			return h.svc.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), in.patch())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.DeleteResult]{
		Method: http.MethodDelete,
		Path:   "/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*service.DeleteResult, error) {
			return h.svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id"))
		},
	})
}
