package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthOut struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthOut{Status: "OK", Timestamp: time.Now().UTC()})
}
