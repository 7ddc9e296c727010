package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/relaychat/internal/common"
	"github.com/suPer8Hu/relaychat/internal/httpapi/handlers"
	"github.com/suPer8Hu/relaychat/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", func(c *gin.Context) { common.OK(c, gin.H{"pong": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// auth
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(h.Cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/models", h.ListModels)

	// chats (JWT required)
	authGroup.POST("/chats", h.CreateChat)
	authGroup.GET("/chats", h.ListChats)
	authGroup.DELETE("/chats/:chatId", h.DeleteChat)
	authGroup.POST("/chats/:chatId/messages", h.CreateMessage)
	authGroup.GET("/chats/:chatId/messages", h.ListMessages)
	authGroup.POST("/chats/:chatId/messages/:messageId/stream", h.StreamMessage)
	authGroup.PATCH("/chats/:chatId/messages/:messageId/stream", h.StreamMessage)
	authGroup.POST("/chats/:chatId/title", h.GenerateTitle)
	return r
}
