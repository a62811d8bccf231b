package app

import (
	"time"

	"github.com/echo-journal/core/internal/middleware"
	"github.com/echo-journal/core/internal/modules/ai"
	"github.com/echo-journal/core/internal/modules/auth"
	"github.com/echo-journal/core/internal/modules/entry"
	"github.com/echo-journal/core/internal/modules/ingest"
	"github.com/echo-journal/core/internal/modules/mux"
	pkgredis "github.com/echo-journal/core/internal/pkg/redis"
	"github.com/echo-journal/core/internal/pkg/response"
	"github.com/echo-journal/core/internal/pkg/taskqueue"
	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes(rc *pkgredis.Client) {
	r := a.router
	db := a.db
	authMW := middleware.Auth(db)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})

	r.Use(middleware.RateLimit(rc.Raw()))

	muxClient := mux.NewClient(a.cfg.Mux)
	taskSvc := taskqueue.NewService(rc)

	a.ingestSvc = ingest.NewService(db, muxClient, a.logger.Named("ingest"))
	entrySvc := entry.NewService(db, muxClient, a.loc, a.logger.Named("entry"))
	aiSvc := ai.NewService(db, a.cfg.AI, taskSvc, a.logger.Named("ai"))
	authSvc := auth.NewService(db)

	api := r.Group(apiPrefix)

	auth.NewHandler(authSvc, db).RegisterRoutes(api, authMW)
	entry.NewHandler(entrySvc).RegisterRoutes(api, authMW)
	ingest.NewHandler(a.ingestSvc, a.logger.Named("ingest")).RegisterRoutes(api, authMW)
	ai.NewHandler(aiSvc).RegisterRoutes(api, authMW)
}
