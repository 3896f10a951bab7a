package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ai-narray/core/internal/modules/deck"
	"github.com/ai-narray/core/internal/modules/narration"
	"github.com/ai-narray/core/internal/modules/render"
	pkgcron "github.com/ai-narray/core/internal/pkg/cron"
	pkgredis "github.com/ai-narray/core/internal/pkg/redis"
	"github.com/ai-narray/core/internal/pkg/response"
	"github.com/ai-narray/core/internal/pkg/taskqueue"
)

func (a *App) registerRoutes(rc *pkgredis.Client) {
	r := a.router
	cfg := a.cfg

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    "ai-narray-core",
		"version": "1.0.0",
	}

	apiPrefix := "/api/v2"

	taskSvc := taskqueue.NewService(rc)

	// Slide collection
	store := deck.NewStore()
	rasterizer := deck.NewRasterizer(cfg.Rasterizer.PdftoppmBin, cfg.Rasterizer.DPI)
	deckHandler := deck.NewHandler(store, rasterizer, cfg.Paths.Uploads)

	// Narration generation
	creds := narration.NewConfigCredentials(cfg.AI)
	genClient := narration.NewGenerationClient(creds, cfg.AI.ScriptModel, cfg.AI.SpeechModel)
	credStatus := narration.NewCredentialStatus()
	orch := narration.NewOrchestrator(store, genClient, taskSvc, credStatus, a.logger)
	narrationHandler := narration.NewHandler(orch, credStatus)

	// Video compositing
	sinkFactory := render.NewFFmpegSink(cfg.Render.FFmpegBin, cfg.Paths.Work)
	uploader, err := render.NewS3Uploader(cfg.Render.S3)
	if err != nil {
		a.logger.Warn("s3 upload disabled", zap.Error(err))
	}
	compositor := render.NewCompositor(store, taskSvc, sinkFactory, cfg.Paths.Artifacts, uploader, a.logger)
	renderHandler := render.NewHandler(compositor)

	// Housekeeping. Decks are session-scoped; anything idle for a day
	// is an abandoned wizard run.
	a.sched.Register(pkgcron.Job{
		Name:        "deck_sweep",
		Description: "remove decks idle for more than 24 hours",
		Interval:    time.Hour,
		Fn: func(context.Context) error {
			if n := store.SweepIdle(24 * time.Hour); n > 0 {
				a.logger.Info("swept idle decks", zap.Int("count", n))
			}
			return nil
		},
	})
	a.sched.Register(pkgcron.Job{
		Name:        "work_sweep",
		Description: "remove stale encoder scratch files",
		Interval:    time.Hour,
		Fn: func(context.Context) error {
			return sweepDir(cfg.Paths.Work, 24*time.Hour)
		},
	})

	api := r.Group(apiPrefix)

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptimeMs := time.Since(processStart).Milliseconds()
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptimeMs,
			"humanize":  humanizeDuration(time.Duration(uptimeMs) * time.Millisecond),
		})
	})

	api.GET("/cron", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	api.POST("/cron/:name/run", func(c *gin.Context) {
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.Accepted(c, gin.H{"name": c.Param("name")})
	})

	deckHandler.RegisterRoutes(api)
	narrationHandler.RegisterRoutes(api)
	renderHandler.RegisterRoutes(api)
	registerTaskRoutes(api, taskSvc)
}

// registerTaskRoutes exposes the background generation jobs.
func registerTaskRoutes(rg *gin.RouterGroup, svc *taskqueue.Service) {
	g := rg.Group("/tasks")

	g.GET("", func(c *gin.Context) {
		var taskType *string
		if v := c.Query("type"); v != "" {
			taskType = &v
		}
		var status *taskqueue.TaskStatus
		if v := c.Query("status"); v != "" {
			s := taskqueue.TaskStatus(v)
			status = &s
		}
		tasks, err := svc.List(c.Request.Context(), taskType, status)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		response.OK(c, tasks)
	})

	g.GET("/:id", func(c *gin.Context) {
		task, err := svc.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.NotFound(c)
			return
		}
		response.OK(c, task)
	})

	g.POST("/:id/cancel", func(c *gin.Context) {
		if err := svc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
			response.Conflict(c, err.Error())
			return
		}
		response.NoContent(c)
	})

	g.DELETE("/:id", func(c *gin.Context) {
		if err := svc.DeleteByID(c.Request.Context(), c.Param("id")); err != nil {
			response.NotFound(c)
			return
		}
		response.NoContent(c)
	})
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
