package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/api/handlers"
	"github.com/maheshrc27/crosspost/internal/api/middleware"
	"github.com/maheshrc27/crosspost/internal/service"
)

type Services struct {
	Coordinator service.PublishCoordinator
	Syncer      service.MetricsSyncer
	Trigger     service.ScheduleTrigger
}

// NewApp builds the fiber app with every route mounted.
func NewApp(cfg config.Config, s Services) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	cron := handlers.NewCronHandler(s.Trigger)
	app.Get("/cron/publish-scheduled-posts", authMiddleware.CronMiddleware(), cron.PublishScheduledPosts)

	posts := app.Group("/posts", authMiddleware.AuthMiddleware())
	post := handlers.NewPostHandler(s.Coordinator, s.Syncer)
	posts.Post("/publish", post.PublishPost)
	posts.Post("/sync", post.SyncMetrics)

	platforms := app.Group("/platforms", authMiddleware.AuthMiddleware())
	platform := handlers.NewPlatformHandler(s.Coordinator)
	platforms.Post("/twitter/post", platform.TwitterPost)
	platforms.Post("/youtube/upload", platform.YoutubeUpload)
	platforms.Post("/instagram/publish", platform.InstagramPublish)
	platforms.Post("/linkedin/post", platform.LinkedInPost)

	return app
}
