package app

import (
	"context"
	"log"

	"hackhub/backend/internal/config"
	"hackhub/backend/internal/handler"
	"hackhub/backend/internal/repository"
	"hackhub/backend/internal/service"
	"hackhub/backend/internal/ws"
)

func Run(cfg *config.Config) {
	ctx := context.Background()

	db, err := repository.NewDB(cfg.DSN())
	if err != nil {
		log.Fatal(err)
	}

	messageRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cache repository.ChannelCache
	if cfg.RedisAddr != "" {
		rdb := repository.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		cache = repository.NewChannelCache(rdb)
	} else {
		log.Println("REDIS_ADDR not set, channel cache disabled")
	}

	var notifier service.Dispatcher = service.LogDispatcher{}
	if cfg.FirebaseCredentials != "" {
		fcm, err := service.NewFirebaseDispatcher(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("firebase init failed, falling back to log dispatcher: %v", err)
		} else {
			notifier = fcm
		}
	}

	limiter := service.NewWindowLimiter(cfg.RateLimitCapacity, cfg.RateLimitWindow())
	defer limiter.Stop()

	engine := service.NewEngine(messageRepo, userRepo, cache, limiter, notifier)

	hub := ws.NewHub()
	defer hub.Shutdown()

	identity := service.NewIdentityService(userRepo)

	var media *service.MediaService
	if cfg.S3Bucket != "" {
		media, err = service.NewMediaService(ctx, cfg)
		if err != nil {
			log.Printf("S3 init failed, uploads disabled: %v", err)
		}
	}

	server := NewServer(
		handler.NewMessageHandler(engine, messageRepo, userRepo, hub),
		handler.NewUserHandler(identity),
		handler.NewUploadHandler(media),
		handler.NewGatewayHandler(hub, engine, identity),
	)
	server.Run(cfg.ServerPort)
}
