package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/enlighten-app/enlighten-chat/internal/config"
	"github.com/enlighten-app/enlighten-chat/internal/gateway"
	"github.com/enlighten-app/enlighten-chat/internal/handler"
	"github.com/enlighten-app/enlighten-chat/internal/notify"
	"github.com/enlighten-app/enlighten-chat/internal/repository"
	"github.com/enlighten-app/enlighten-chat/internal/router"
	"github.com/enlighten-app/enlighten-chat/internal/service"
	"github.com/enlighten-app/enlighten-chat/internal/translate"
	"github.com/enlighten-app/enlighten-chat/internal/upload"
	"github.com/enlighten-app/enlighten-chat/pkg/constant"
	"github.com/mbeoliero/kit/log"
)

func main() {
	ctx := context.TODO()

	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	// Translation side-channel
	var translator translate.Translator = translate.Noop{}
	if cfg.Translation.Enabled {
		translator = translate.NewOpenAIProvider(&cfg.Translation)
		log.CtxInfo(ctx, "translation enabled: model=%s", cfg.Translation.Model)
	}

	// Notification pipeline
	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.Enabled {
		amqpNotifier, err := notify.NewAmqpNotifier(cfg.Notify.AMQPUrl, cfg.Notify.Queue)
		if err != nil {
			// Notifications are best effort end to end; run without them
			log.CtxWarn(ctx, "notification broker unavailable, continuing without: %v", err)
		} else {
			notifier = amqpNotifier
			defer amqpNotifier.Close()
			log.CtxInfo(ctx, "notification publisher connected: queue=%s", cfg.Notify.Queue)
		}
	}

	// Attachment storage
	uploadStore, err := upload.NewStore(&cfg.Upload)
	if err != nil {
		log.CtxError(ctx, "failed to initialize upload store: %v", err)
		panic(err)
	}

	// Initialize services
	chatService := service.NewChatService(repos, translator, notifier)

	// Initialize WebSocket server
	wsServer := gateway.NewWsServer(cfg, repos.Redis, chatService)
	chatService.SetPusher(wsServer)

	// Start WebSocket server
	wsServer.Run(ctx)
	log.CtxInfo(ctx, "websocket server started")

	// Initialize handlers
	handlers := &router.Handlers{
		Chat: handler.NewChatHandler(chatService, uploadStore),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, handlers, wsServer, uploadStore)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	// Graceful shutdown
	if err := h.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
