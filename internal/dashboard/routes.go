package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, reg Snapshotter, metrics http.Handler) {
	router.GET("/", handleIndex(reg))
	router.GET("/api/status", handleStatus(reg))
	router.GET("/healthz", handleHealth())
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
}

func handleIndex(reg Snapshotter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", gin.H{
			"tenants": reg.Snapshot(),
			"refresh": refreshSeconds,
		})
	}
}

func handleStatus(reg Snapshotter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.Snapshot())
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
