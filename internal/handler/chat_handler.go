package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/enlighten-app/enlighten-chat/internal/entity"
	"github.com/enlighten-app/enlighten-chat/internal/middleware"
	"github.com/enlighten-app/enlighten-chat/internal/service"
	"github.com/enlighten-app/enlighten-chat/internal/upload"
	"github.com/enlighten-app/enlighten-chat/pkg/constant"
	"github.com/enlighten-app/enlighten-chat/pkg/errcode"
	"github.com/enlighten-app/enlighten-chat/pkg/response"
)

// ChatHandler handles chat-related requests
type ChatHandler struct {
	chatService *service.ChatService
	uploadStore *upload.Store
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chatService *service.ChatService, uploadStore *upload.Store) *ChatHandler {
	return &ChatHandler{chatService: chatService, uploadStore: uploadStore}
}

// ListConversations handles the conversation listing request
func (h *ChatHandler) ListConversations(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	summaries, err := h.chatService.ListConversations(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"conversations": summaries,
	})
}

// GetHistory handles the conversation history request. Viewing marks the
// caller's unread peer messages as read.
func (h *ChatHandler) GetHistory(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	userA := c.Param("user_a")
	userB := c.Param("user_b")
	if userA == "" || userB == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	messages, err := h.chatService.GetHistory(ctx, userId, userA, userB)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"conversation_id": entity.GenPairConversationId(userA, userB),
		"messages":        messages,
	})
}

// SendMessage handles the HTTP send request. The body is either JSON or a
// multipart form when a file attachment rides along with the text.
func (h *ChatHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	req := &service.SendMessageRequest{}

	if strings.HasPrefix(string(c.ContentType()), "application/json") {
		if err := c.BindAndValidate(req); err != nil {
			response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
			return
		}
	} else {
		// Multipart form so a file attachment can ride along with the text
		req.ClientMsgId = c.PostForm("client_msg_id")
		req.RecvId = c.PostForm("recv_id")
		req.Content = c.PostForm("content")

		// Kind comes as a wire name ("text", "file", "call") or a number
		if kindStr := c.PostForm("kind"); kindStr != "" {
			if kind := constant.KindFromName(kindStr); kind != 0 {
				req.Kind = kind
			} else if n, err := strconv.Atoi(kindStr); err == nil {
				req.Kind = int32(n)
			}
		}

		if fh, err := c.FormFile("file"); err == nil && fh != nil {
			stored, err := h.uploadStore.Save(fh)
			if err != nil {
				response.Error(ctx, c, err)
				return
			}
			req.File = entity.FileRef{Url: stored.Url, Name: stored.Name, Mime: stored.Mime}
			if req.Kind == 0 || req.Kind == constant.KindText {
				req.Kind = constant.KindFile
			}
		}
	}

	msg, err := h.chatService.SendMessage(ctx, userId, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg.ToMessageInfo())
}

// StartChat handles the start conversation request
func (h *ChatHandler) StartChat(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req struct {
		PeerId string `json:"peer_id"`
	}
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	summary, err := h.chatService.StartChat(ctx, userId, req.PeerId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, summary)
}

// SearchUsers handles the connection-scoped user search
func (h *ChatHandler) SearchUsers(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	term := c.Query("q")
	limit, _ := strconv.Atoi(c.Query("limit"))

	users, err := h.chatService.SearchUsers(ctx, userId, term, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"users": users,
	})
}
