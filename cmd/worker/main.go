package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/queue"
	"quill/internal/redis"
	"quill/internal/repository"
	"quill/internal/worker"
)

// The worker process drains the timeline stream: fan-out on new posts and
// shares, eviction on deletes, backfill and sweep on follow changes.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	postRepo := repository.NewPostRepository(db)
	relRepo := repository.NewRelationshipRepository(db)
	timelineCache := cache.NewTimelineCache(redisClient.Client)

	handler := worker.NewHandler(timelineCache, relRepo, postRepo)
	consumer := queue.NewConsumer(redisClient.Client)

	managerCfg := worker.DefaultManagerConfig()
	managerCfg.WorkerCount = cfg.WorkerCount

	manager := worker.NewManager(consumer, handler, managerCfg)
	if err := manager.Start(context.Background()); err != nil {
		log.Fatalf("start workers: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Printf("Received %v, shutting down", sig)

	manager.Stop()
}
