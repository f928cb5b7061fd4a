package http

import (
	"github.com/connvault/connvault/internal/config"
	"github.com/connvault/connvault/internal/connections"
	"github.com/connvault/connvault/internal/http/handlers"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewRouter assembles the gin engine with all middleware and routes.
func NewRouter(conn *gorm.DB, svc *connections.Service, cfg *config.Config) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestIDMiddleware())

	flag := newAuthFlag(conn)
	limiter := newLoginLimiter(cfg.RateLimit)

	authHandler := handlers.NewAuthHandler(conn, cfg.JWT, flag)
	connectionHandler := handlers.NewConnectionHandler(svc, cfg.Import.DropPath)
	memoHandler := handlers.NewMemoHandler(conn)
	catalogHandler := handlers.NewCatalogHandler(conn)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	auth := engine.Group("/api/auth")
	{
		auth.POST("/sign-in", loginRateLimitMiddleware(limiter), authHandler.SignIn)
		auth.POST("/sign-up", loginRateLimitMiddleware(limiter), authHandler.SignUp)
		auth.POST("/sign-out", authHandler.SignOut)
	}

	api := engine.Group("/api", userAuthMiddleware(flag, cfg.JWT))
	{
		api.GET("/auth/session", authHandler.Session)
		api.POST("/auth/toggle-auth", superuserRequired(), authHandler.ToggleAuth)

		api.GET("/connections", connectionHandler.List)
		api.GET("/connections/search", connectionHandler.Search)
		api.GET("/connections/stats", connectionHandler.Stats)
		api.POST("/connections/import", superuserRequired(), connectionHandler.Import)
		api.GET("/connections/:id", connectionHandler.Get)
		api.GET("/connections/:id/decrypt", connectionHandler.Decrypt)
		api.POST("/connections/:id/rate", connectionHandler.Rate)
		api.POST("/connections/:id/usage", connectionHandler.TrackUsage)

		api.GET("/memos", memoHandler.List)
		api.POST("/memos", memoHandler.Create)
		api.POST("/memos/bulk", memoHandler.BulkCreate)
		api.POST("/memos/bulk-delete", memoHandler.BulkDelete)
		api.GET("/memos/:id", memoHandler.Get)
		api.PUT("/memos/:id", memoHandler.Update)
		api.DELETE("/memos/:id", memoHandler.Delete)

		api.GET("/categories", catalogHandler.ListCategories)
		api.POST("/categories", catalogHandler.CreateCategory)
		api.DELETE("/categories/:id", catalogHandler.DeleteCategory)

		api.GET("/types", catalogHandler.ListTypes)
		api.POST("/types", catalogHandler.CreateType)
		api.DELETE("/types/:id", catalogHandler.DeleteType)
	}

	return engine
}
