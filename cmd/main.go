package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/minisource/dbscheduler/config"
	"github.com/minisource/dbscheduler/internal/client"
	"github.com/minisource/dbscheduler/internal/database"
	"github.com/minisource/dbscheduler/internal/handler"
	"github.com/minisource/dbscheduler/internal/registry"
	"github.com/minisource/dbscheduler/internal/router"
	"github.com/minisource/dbscheduler/internal/scheduler"
	"github.com/minisource/dbscheduler/internal/stats"
	"github.com/minisource/dbscheduler/internal/store"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.NewPostgresConnection(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to auto-migrate: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	execStore := store.NewPostgresStore(db)
	sink := stats.NewRedisSink(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.Channel)

	taskRegistry := registry.New()
	registerTasks(taskRegistry)

	// Distinguish nodes sharing cfg.Scheduler.Name in dead-execution and
	// PickedBy logging.
	schedulerName := fmt.Sprintf("%s-%s", cfg.Scheduler.Name, uuid.New().String()[:8])

	sched := scheduler.New(scheduler.Config{
		SchedulerName:            schedulerName,
		ThreadpoolSize:           cfg.Scheduler.ThreadpoolSize,
		PollingLimit:             cfg.Scheduler.PollingLimit,
		PollingInterval:          time.Duration(cfg.Scheduler.PollingIntervalSeconds) * time.Second,
		HeartbeatInterval:        time.Duration(cfg.Scheduler.HeartbeatIntervalSeconds) * time.Second,
		ShutdownWait:             time.Duration(cfg.Scheduler.ShutdownWaitMinutes) * time.Minute,
		EnableImmediateExecution: cfg.Scheduler.EnableImmediateExecution,
	}, execStore, taskRegistry, sink, nil)

	schedulingClient := client.New(execStore, sched, cfg.Scheduler.EnableImmediateExecution)

	handlers := &router.Handlers{
		Scheduling: handler.NewSchedulingHandler(schedulingClient),
		Health:     handler.NewHealthHandler(db, sched),
	}

	app := fiber.New(fiber.Config{
		AppName:      "Minisource DB Scheduler",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	})

	router.SetupRouter(app, handlers)

	sched.Start(ctx)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Printf("Starting scheduler service on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler service...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Scheduler service stopped")
}

// registerTasks wires the set of task bodies this deployment knows how to
// run. Applications embedding this scheduler register their own tasks here
// instead; housekeeping is kept as a minimal always-on example.
func registerTasks(r *registry.Registry) {
	r.Register(registry.Task{
		Name: "housekeeping",
		Execute: func(ctx context.Context, instance registry.Instance) error {
			log.Printf("housekeeping: running instance %s", instance.InstanceID)
			return nil
		},
		OnComplete: registry.RescheduleEvery(24*time.Hour, time.Now),
	})
}
