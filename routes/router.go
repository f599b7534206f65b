package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/hexfeed/config"
	"github.com/cppla/hexfeed/controllers"
	"github.com/cppla/hexfeed/identity"
	"github.com/cppla/hexfeed/middleware"
	"github.com/cppla/hexfeed/storage"
	"github.com/cppla/hexfeed/utils"
	"github.com/cppla/hexfeed/viewmodel"
)

// Provider is the identity backend the HTTP shell signs users in with.
type Provider interface {
	controllers.AccountProvider
	middleware.SessionStore
}

// Dependencies are the components the routes are served by.
type Dependencies struct {
	// Base is cancelled on shutdown; open feed streams end with it.
	Base     context.Context
	Store    viewmodel.PostStore
	Uploader storage.Uploader
	Provider Provider
	Topics   viewmodel.TopicStore
	Clock    utils.Clock
	Logger   *zap.Logger
}

var _ Provider = (*identity.LocalProvider)(nil)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Dependencies) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Base == nil {
		deps.Base = context.Background()
	}
	logger := utils.OrNop(deps.Logger)

	r := gin.New()
	// Access and recovery logs go to their own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	if cfg.UploadDir != "" {
		r.Static(cfg.UploadBaseURL, cfg.UploadDir)
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	feedController := controllers.NewFeedController(deps.Base, deps.Store, logger)
	postController := controllers.NewPostController(deps.Base, deps.Store, deps.Uploader, deps.Provider, deps.Clock, logger)
	authController := controllers.NewAuthController(deps.Provider, deps.Topics, cfg.NotificationTopic, logger)
	settingsController := controllers.NewSettingsController(deps.Provider, deps.Topics, cfg.NotificationTopic, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")
	api.Use(middleware.Session(cfg.JWTSecret, deps.Provider))

	api.GET("/feed", feedController.ListFeed)
	api.GET("/feed/stream", feedController.StreamFeed)
	api.GET("/posts/:id", postController.GetPost)
	api.GET("/posts/:id/stream", postController.StreamPost)

	authGroup := api.Group("/auth")
	authGroup.Use(limiter.Middleware())
	authGroup.POST("/signin", authController.SignIn)
	authGroup.POST("/signup", authController.SignUp)
	authGroup.POST("/reset", authController.SendPasswordReset)
	authGroup.POST("/reset/confirm", authController.ConfirmPasswordReset)
	authGroup.POST("/signout", middleware.AuthRequired(), authController.SignOut)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.DELETE("/account", middleware.AuthRequired(), authController.DeleteAccount)

	// sign-in and ownership are checked by the state-holders behind these handlers
	writes := api.Group("")
	writes.Use(limiter.Middleware())
	writes.POST("/posts", postController.CreatePost)
	writes.POST("/posts/:id/comments", postController.CreateComment)
	writes.DELETE("/posts/:id", postController.DeletePost)
	writes.DELETE("/posts/:id/comments/:commentId", postController.DeleteComment)

	api.GET("/settings/notifications", settingsController.GetNotifications)
	api.PUT("/settings/notifications", limiter.Middleware(), settingsController.UpdateNotifications)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
