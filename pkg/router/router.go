package router

import (
	"strings"
	"time"

	"livewire/backend/internal/api"
	"livewire/backend/internal/relay"
	"livewire/backend/pkg/config"
	"livewire/backend/pkg/di"
	"livewire/backend/pkg/errors"
	"livewire/backend/pkg/logger"
	"livewire/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := config.New()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(container.Logger, middleware.OptionsFromConfig(cfg))
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware(r.Config.Security.AllowedOrigins))

	jwtAuth := middleware.JWTAuth(r.Container.JWTService, r.Logger)

	authHandler := api.NewAuthHandler(r.Container.UserService, r.Logger)
	userHandler := api.NewUserHandler(r.Container.UserService, r.Logger)

	// keep the interface nil when no cache is configured
	var invalidator api.ParticipantInvalidator
	if r.Container.ParticipantCache != nil {
		invalidator = r.Container.ParticipantCache
	}
	conversationHandler := api.NewConversationHandler(r.Container.ChatService, invalidator, r.Logger)
	messageHandler := api.NewMessageHandler(r.Container.ChatService, r.Logger)
	wsHandler := relay.NewWSHandler(r.Container.Relay, r.Container.ChatService, r.Logger)

	// Operational endpoints
	r.Engine.GET("/api/health", r.healthCheckHandler())
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := r.Engine.Group("/api/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.GET("/me", jwtAuth, authHandler.Me)
	}

	apiRoutes := r.Engine.Group("/api")
	apiRoutes.Use(jwtAuth)
	{
		apiRoutes.GET("/users", userHandler.List)

		chatRoutes := apiRoutes.Group("/chat/conversations")
		{
			chatRoutes.GET("", conversationHandler.List)
			chatRoutes.POST("", conversationHandler.Create)
			chatRoutes.GET("/:conversationID", conversationHandler.Get)
			chatRoutes.PATCH("/:conversationID", conversationHandler.Update)
			chatRoutes.DELETE("/:conversationID", conversationHandler.Delete)

			chatRoutes.GET("/:conversationID/messages", messageHandler.List)
			chatRoutes.POST("/:conversationID/messages", messageHandler.Create)
			chatRoutes.GET("/:conversationID/messages/:messageID", messageHandler.Get)
			chatRoutes.PATCH("/:conversationID/messages/:messageID", messageHandler.Update)
			chatRoutes.DELETE("/:conversationID/messages/:messageID", messageHandler.Delete)
		}
	}

	// Relay endpoint: the token rides the query string since browsers cannot
	// set headers on a WebSocket handshake.
	r.Engine.GET("/ws/chat/:conversationID", jwtAuth, wsHandler.Serve)
}

// healthCheckHandler returns a simple health check handler
func (r *Router) healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"env":    r.Config.Server.Env,
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAny := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAny = true
			continue
		}
		allowed[strings.TrimSpace(origin)] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if _, ok := allowed[origin]; ok {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		} else if allowAny {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
