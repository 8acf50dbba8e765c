package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	domainauth "tradepost/internal/domain/auth"
	domainchat "tradepost/internal/domain/chat"
	domainfavorites "tradepost/internal/domain/favorites"
	domainjobs "tradepost/internal/domain/jobs"
	domainlistings "tradepost/internal/domain/listings"
	domainreviews "tradepost/internal/domain/reviews"
	domainuser "tradepost/internal/domain/user"

	authservice "tradepost/internal/app/services/auth"
	"tradepost/internal/infra/broker/kafka"
	"tradepost/internal/infra/config"
	mongodb "tradepost/internal/infra/db/mongo"
	ginserver "tradepost/internal/infra/http/gin"
	"tradepost/internal/infra/obs"
	"tradepost/internal/infra/security"
	"tradepost/internal/infra/storage/memory"
	"tradepost/internal/infra/storage/s3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: Mongo when configured, in-memory fallback for local runs.
	var (
		users     domainuser.Repository
		sessions  domainauth.SessionStore
		listings  domainlistings.Repository
		jobsRepo  domainjobs.Repository
		favorites domainfavorites.Repository
		reviews   domainreviews.Repository
		chatStore domainchat.Store
		readiness func() error
	)
	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("mongo connect failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Close(shutdownCtx); err != nil {
				logger.Warn("mongo disconnect failed", "error", err)
			}
		}()
		users = mongodb.NewUserRepository(client.DB)
		sessions = memory.NewSessionStore()
		listings = mongodb.NewListingRepository(client.DB)
		jobsRepo = mongodb.NewJobRepository(client.DB)
		favorites = mongodb.NewFavoriteRepository(client.DB)
		reviews = mongodb.NewReviewRepository(client.DB)
		chatStore = mongodb.NewChatStore(client.DB, logger)
		readiness = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}
		logger.Info("storage ready", "backend", "mongo", "database", cfg.MongoDB)
	} else {
		users = memory.NewUserRepository()
		sessions = memory.NewSessionStore()
		listings = memory.NewListingRepository()
		jobsRepo = memory.NewJobRepository()
		favorites = memory.NewFavoriteRepository()
		reviews = memory.NewReviewRepository()
		chatStore = memory.NewChatStore()
		logger.Warn("MONGO_URI not set, using in-memory storage")
	}

	// Events: Kafka when brokers are configured, otherwise dropped.
	var events domainchat.EventPublisher = kafka.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, nil)
		if err != nil {
			logger.Error("kafka connect failed", "brokers", cfg.KafkaBrokers, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka close failed", "error", err)
			}
		}()
		events = producer
		logger.Info("kafka producer ready", "brokers", cfg.KafkaBrokers)
	} else {
		logger.Warn("KAFKA_BROKERS not set, events are dropped")
	}

	var uploader s3.Uploader = s3.NoopUploader{}
	if cfg.S3Endpoint != "" {
		client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger)
		if err != nil {
			logger.Warn("s3 client init failed, uploads disabled", "error", err)
		} else {
			uploader = client
		}
	}

	authSvc := &authservice.Service{
		Users:      users,
		Sessions:   sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}

	chat := domainchat.NewCoordinator(chatStore, domainchat.Options{
		Events:   events,
		Logger:   logger,
		Attempts: cfg.ChatAttempts,
		Backoff:  cfg.ChatBackoff,
	})

	router := ginserver.NewRouter(cfg.Env, ginserver.Handlers{
		Auth:      ginserver.AuthHandler{Service: authSvc, Logger: logger},
		Chat:      ginserver.ChatHandler{Chat: chat, Listings: listings, Users: users, Logger: logger},
		Listings:  ginserver.ListingHandler{Listings: listings, Events: events, Logger: logger},
		Jobs:      ginserver.JobHandler{Jobs: jobsRepo, Logger: logger},
		Favorites: ginserver.FavoriteHandler{Favorites: favorites, Listings: listings, Logger: logger},
		Reviews:   ginserver.ReviewHandler{Reviews: reviews, Logger: logger},
		Admin:     ginserver.AdminHandler{Users: users, Listings: listings, Logger: logger},
		Uploads:   ginserver.UploadHandler{Uploader: uploader, Logger: logger},
		AuthMW:    ginserver.AuthMiddleware{Service: authSvc, Logger: logger},
		Health:    obs.HealthHandlers{Ready: readiness},
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}
