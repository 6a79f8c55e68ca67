package router

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/enlighten-app/enlighten-chat/internal/config"
	"github.com/enlighten-app/enlighten-chat/internal/gateway"
	"github.com/enlighten-app/enlighten-chat/internal/handler"
	"github.com/enlighten-app/enlighten-chat/internal/middleware"
	"github.com/enlighten-app/enlighten-chat/internal/upload"
	"github.com/hertz-contrib/websocket"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Chat *handler.ChatHandler
}

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, handlers *Handlers, wsServer *gateway.WsServer, uploadStore *upload.Store) {
	cfg := config.GlobalConfig

	// CORS middleware
	h.Use(middleware.CORS())

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	// Chat routes (auth required)
	chatGroup := h.Group("/chat", middleware.JWTAuth())
	{
		chatGroup.GET("", handlers.Chat.ListConversations)
		chatGroup.GET("/conversation/:user_a/:user_b", handlers.Chat.GetHistory)
		chatGroup.POST("/send", handlers.Chat.SendMessage)
		chatGroup.POST("/start", handlers.Chat.StartChat)
		chatGroup.GET("/users/search", handlers.Chat.SearchUsers)
	}

	// Attachments are served statically from the upload directory
	if uploadStore != nil {
		h.StaticFS(uploadStore.PublicPath(), &app.FS{
			Root:               uploadStore.Dir(),
			AcceptByteRange:    true,
			PathRewrite:        app.NewPathSlashesStripper(strings.Count(strings.Trim(uploadStore.PublicPath(), "/"), "/") + 1),
			IndexNames:         nil,
			GenerateIndexPages: false,
		})
	}

	// WebSocket route with origin validation
	allowedOrigins := cfg.Server.AllowedOrigins
	upgrader := &websocket.HertzUpgrader{
		CheckOrigin: func(ctx *app.RequestContext) bool {
			return checkOrigin(ctx, allowedOrigins)
		},
	}

	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		wsServer.HandleConnection(ctx, c, upgrader)
	})
}

// checkOrigin validates the Origin header against allowed origins
func checkOrigin(ctx *app.RequestContext, allowedOrigins []string) bool {
	origin := string(ctx.Request.Header.Peek("Origin"))

	// If no origin header, allow (same-origin request or non-browser client)
	if origin == "" {
		return true
	}

	// If no allowed origins configured, reject all cross-origin requests
	if len(allowedOrigins) == 0 {
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			// Wildcard, development only
			return true
		}
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}

	return false
}
