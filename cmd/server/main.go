package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/api"
	"github.com/maheshrc27/crosspost/internal/bootstrap"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	ctx := context.Background()

	db, err := bootstrap.OpenDB(*cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeDB(db)

	if err := repository.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	rdb, err := bootstrap.OpenRedis(ctx, *cfg)
	if err != nil {
		log.Fatal(err)
	}
	if rdb == nil {
		log.Println("Warning: REDIS_URI not set, overlap locks and the metrics queue are disabled")
	} else {
		defer rdb.Close()
	}

	deps, err := bootstrap.Build(ctx, *cfg, db, rdb)
	if err != nil {
		log.Fatal(err)
	}

	app := api.NewApp(*cfg, api.Services{
		Coordinator: deps.Coordinator,
		Syncer:      deps.Syncer,
		Trigger:     deps.Trigger,
	})

	var (
		client      *asynq.Client
		queueServer *asynq.Server
	)
	if rdb != nil {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		client = asynq.NewClient(redisConn)
		defer client.Close()

		queueServer = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})
		queueW := queue.NewQueue(deps.Syncer)

		go func() {
			mux := asynq.NewServeMux()
			mux.HandleFunc(queue.TaskTypeSyncMetrics, queueW.HandleSyncMetricsTask)

			log.Println("Starting the Asynq server...")
			if err := queueServer.Run(mux); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	var c *cron.Cron
	if cfg.Schedule.CronEnabled {
		c = cron.New()
		if err := c.AddJob(cfg.Schedule.SweepSpec, job.NewScheduleSweepJob(deps.Trigger)); err != nil {
			log.Fatalf("Invalid SWEEP_SPEC: %v", err)
		}
		if err := c.AddJob(cfg.Schedule.TokenRefreshSpec, job.NewTokenRefreshJob(deps.Creds, deps.Youtube)); err != nil {
			log.Fatalf("Invalid TOKEN_REFRESH_SPEC: %v", err)
		}
		if client != nil {
			enqueue := func(p queue.SyncMetricsPayload) error { return queue.EnqueueSync(client, p) }
			if err := c.AddJob(cfg.Schedule.MetricsSpec, job.NewMetricsSyncJob(deps.Posts, enqueue)); err != nil {
				log.Fatalf("Invalid METRICS_SPEC: %v", err)
			}
		}
		c.Start()
		log.Println("In-process scheduler started")
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, c, queueServer)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, queueServer *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if c != nil {
		c.Stop()
	}
	if queueServer != nil {
		queueServer.Shutdown()
	}
	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
