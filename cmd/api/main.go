package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	mongoadapter "github.com/aitraveller/trip-bookings/internal/adapters/mongo"
	"github.com/aitraveller/trip-bookings/internal/adapters/postgres"
	"github.com/aitraveller/trip-bookings/internal/adapters/rabbit"
	redisadapter "github.com/aitraveller/trip-bookings/internal/adapters/redis"
	"github.com/aitraveller/trip-bookings/internal/adapters/stripe"
	"github.com/aitraveller/trip-bookings/internal/booking"
	"github.com/aitraveller/trip-bookings/internal/config"
	httphandler "github.com/aitraveller/trip-bookings/internal/http"
	"github.com/aitraveller/trip-bookings/internal/observability"
	"github.com/aitraveller/trip-bookings/internal/outbox"
	"github.com/aitraveller/trip-bookings/internal/rateLimit"
	"github.com/aitraveller/trip-bookings/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("trips")
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	limiterStore := redisadapter.NewLimiterStore(redisClient)
	rl := rateLimit.NewRateLimiter(limiterStore, cfg.RateLimitQuota, cfg.RateLimitWindow, cfg.RateLimitBlock)
	idemp := redisadapter.NewIdempotency(redisClient, cfg.IdempotencyTTL)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	gateway := stripe.NewGateway(cfg.StripeAPIKey, cfg.StripeWebhookSecret, cfg.StripeBaseURL, cfg.GatewayTimeout)

	svc := booking.NewService(repo, gateway, catalog, logger)
	processor := webhook.NewProcessor(repo, gateway, audit, logger)
	outboxPub := outbox.NewPublisher(repo, rabbitPub, logger)

	handlers := httphandler.NewHandlers(svc, repo, processor, idemp, logger)
	router := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API listening on ", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		outboxPub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("Server exiting")
}
