package response

import (
	"github.com/gin-gonic/gin"

	"project-tracker/internal/core/apperr"
)

// Message is the body of every error response.
type Message struct {
	Message string `json:"message"`
}

func Msg(s string) Message { return Message{Message: s} }

// Abort stops the chain with a {"message": msg} body.
func Abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Msg(msg))
}

// AbortErr maps err through apperr. Server-side causes are replaced with a
// generic message.
func AbortErr(c *gin.Context, err error) {
	Abort(c, apperr.CodeOf(err), apperr.PublicMessage(err))
}
