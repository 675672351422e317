package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"school-server-go/models"
	"school-server-go/service"
)

// NewRouter builds the gin engine serving both record types.
func NewRouter(staff *service.StaffService, students *service.StudentService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	// Setup record routes
	NewAPIHandler(staff).Register(router.Group("/staff"))
	NewAPIHandler(students).Register(router.Group("/students"))

	router.GET("/ping", PingHandler(staff, students))

	router.NoRoute(func(c *gin.Context) {
		respond(c, http.StatusNotFound, models.StatusError, nil, "route not found")
	})
	return router
}

// RequestLogger logs one line per request through loggo.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), time.Since(start))
	}
}
