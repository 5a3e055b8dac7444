package api

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/timeline-cache/internal/api/handler"
)

// NewRouter 注册缓存检查接口
func NewRouter(h *handler.Handler, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/timeline/:paging_key", h.Timeline)
		v1.GET("/timeline/:paging_key/cursor", h.Cursor)
		v1.POST("/timeline/:paging_key/load", h.Load)
		v1.GET("/status/:key", h.Status)
	}
	return r
}
