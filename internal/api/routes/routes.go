// Package routes wires the HTTP surface: the websocket upgrade endpoint and
// a health probe.
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"chat-realtime/internal/api/middleware"
	"chat-realtime/internal/realtime"
)

type Router struct {
	engine   *gin.Engine
	hub      *realtime.Hub
	verifier realtime.TokenVerifier
}

// NewRouter builds the gin engine. redisClient may be nil; rate limiting is
// then disabled.
func NewRouter(hub *realtime.Hub, verifier realtime.TokenVerifier, redisClient *redis.Client) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS())

	router := &Router{
		engine:   engine,
		hub:      hub,
		verifier: verifier,
	}

	rateLimit := middleware.NewRateLimitMiddleware(redisClient)

	api := engine.Group("/api")
	{
		api.GET("/ws", rateLimit.Limit(10, time.Minute), router.handleWebSocket)
	}

	engine.GET("/healthz", router.handleHealth)

	return router
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) handleWebSocket(c *gin.Context) {
	realtime.ServeWS(r.hub, r.verifier, c.Writer, c.Request)
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"online_users": r.hub.OnlineUsers(),
	})
}
