package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// APIModule mounts its routes under /api.
type APIModule interface{ MountAPI(*gin.RouterGroup) }

// Modules may set their mount order; the default is 100, lower mounts first.
type prioritizer interface{ Priority() int }

type Registry struct {
	mods []APIModule
}

func (r *Registry) Register(mods ...APIModule) {
	r.mods = append(r.mods, mods...)
}

func (r *Registry) MountAll(api *gin.RouterGroup) {
	mods := append([]APIModule(nil), r.mods...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.MountAPI(api)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
