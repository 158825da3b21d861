package http

import (
	"context"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/handler"
	"quill/internal/queue"
	"quill/internal/redis"
	"quill/internal/repository"
	"quill/internal/service"
	"quill/internal/timeline"
)

// Run wires the whole API server: storage, cache, queue, services, router.
// It blocks until SIGINT/SIGTERM and then drains in-flight requests.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()); err != nil {
		return err
	}

	actorRepo := repository.NewActorRepository(db)
	postRepo := repository.NewPostRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	relRepo := repository.NewRelationshipRepository(db)

	timelineCache := cache.NewTimelineCache(redisClient.Client)
	publisher := queue.NewPublisher(redisClient.Client)

	composer := timeline.NewComposer(relRepo)
	hydrator := service.NewHydrator(actorRepo, postRepo, reactionRepo)

	postService := service.NewPostService(postRepo, reactionRepo, relRepo, hydrator, publisher, db)
	relService := service.NewRelationshipService(relRepo, actorRepo, publisher, db)
	timelineService := service.NewTimelineService(postRepo, actorRepo, relRepo, timelineCache, composer, hydrator)

	router := NewRouter(RouterConfig{
		PostHandler:         handler.NewPostHandler(postService),
		ReactionHandler:     handler.NewReactionHandler(postService),
		TimelineHandler:     handler.NewTimelineHandler(timelineService),
		RelationshipHandler: handler.NewRelationshipHandler(relService),
		JWTSecret:           cfg.JWTSecret,
	})

	srv := &stdhttp.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("Received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
