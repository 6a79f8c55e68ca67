package gateway

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/enlighten-app/enlighten-chat/internal/config"
	"github.com/enlighten-app/enlighten-chat/internal/service"
	"github.com/enlighten-app/enlighten-chat/pkg/constant"
	"github.com/enlighten-app/enlighten-chat/pkg/errcode"
	"github.com/enlighten-app/enlighten-chat/pkg/idgen"
	"github.com/enlighten-app/enlighten-chat/pkg/jwt"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
)

// WsServer is the WebSocket delivery channel
type WsServer struct {
	cfg            *config.Config
	presence       *Presence
	unregisterChan chan *Client
	pushChan       chan *PushTask
	chatService    *service.ChatService
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

// PushTask represents an event push to a set of users
type PushTask struct {
	Event     string
	Payload   interface{}
	TargetIds []string
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.Config, rdb *redis.Client, chatService *service.ChatService) *WsServer {
	server := &WsServer{
		cfg:            cfg,
		presence:       NewPresence(rdb),
		unregisterChan: make(chan *Client, 1000),
		pushChan:       make(chan *PushTask, cfg.WebSocket.PushChannelSize),
		chatService:    chatService,
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}

	return server
}

// Run starts the WebSocket server loops
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}
	log.Info("started %d push workers", workerNum)
}

// eventLoop handles client unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async event pushing
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask delivers one event to each online target. Delivery is at
// most once; targets without a bound connection rely on the durable store.
func (s *WsServer) processPushTask(ctx context.Context, task *PushTask) {
	for _, userId := range task.TargetIds {
		client, ok := s.presence.Get(userId)
		if !ok {
			continue
		}

		if err := client.Push(task.Event, task.Payload); err != nil {
			log.CtxDebug(ctx, "push to client failed: event=%s, user_id=%s, conn_id=%s, error=%v",
				task.Event, userId, client.ConnId, err)
		}
	}
}

// unregisterClient removes the client from presence. A stale connection that
// was already replaced by a newer announce does not change presence.
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	wentOffline := s.presence.Unbind(ctx, client)
	s.onlineConnNum.Add(-1)

	log.CtxInfo(ctx, "client unregistered: user_id=%s, conn_id=%s, went_offline=%v, online_users=%d",
		client.UserId, client.ConnId, wentOffline, s.presence.Count())

	if wentOffline {
		s.broadcastPresence()
	}
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// HandleConnection upgrades an authenticated request to a websocket
// connection. The connection stays unbound until the client announces.
func (s *WsServer) HandleConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(503, "connection limit exceeded")
		return
	}

	token := string(c.Query(QueryToken))
	platformIdStr := string(c.Query(QueryPlatformId))

	if token == "" {
		c.String(400, "missing token")
		return
	}

	platformId := 0
	if platformIdStr != "" {
		platformId, _ = strconv.Atoi(platformIdStr)
	}

	claims, err := s.authenticate(ctx, token)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: %v", err)
		c.String(401, "unauthorized")
		return
	}
	if platformId == 0 {
		platformId = claims.PlatformId
	}

	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		connId := idgen.NewConnId()
		wsConn := NewHertzClientConn(conn, s.cfg.WebSocket.MaxMessageSize,
			s.cfg.WebSocket.PongWait, s.cfg.WebSocket.PingPeriod,
			s.cfg.WebSocket.WriteWait, s.cfg.WebSocket.WriteChannelSize)
		client := NewClient(wsConn, claims.UserId, platformId, connId, s)

		s.onlineConnNum.Add(1)

		// Blocking message loop
		client.readLoop()
	})

	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}
}

// authenticate tries a native token first and falls back to a platform token
// when the fallback is configured.
func (s *WsServer) authenticate(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err == nil {
		return claims, nil
	}

	if s.cfg.PlatformJWT.Enabled {
		return jwt.ParsePlatformToken(token, s.cfg.PlatformJWT.Secret, s.cfg.PlatformJWT.DefaultPlatformId)
	}
	return nil, err
}

// AsyncPushToUsers queues an event push to users
func (s *WsServer) AsyncPushToUsers(event string, payload interface{}, userIds []string) {
	task := &PushTask{
		Event:     event,
		Payload:   payload,
		TargetIds: userIds,
	}

	select {
	case s.pushChan <- task:
	default:
		log.Warn("push channel full, event dropped: event=%s", event)
	}
}

// broadcastPresence pushes the current online id list to everyone connected
func (s *WsServer) broadcastPresence() {
	online := s.presence.OnlineIds()
	s.AsyncPushToUsers(constant.EventPresence, &PresenceData{Online: online}, online)
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int {
	return s.presence.Count()
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// ========== Event Handlers ==========

// HandleAnnounce binds the connection to its user and broadcasts presence.
// A repeat announce from a newer connection replaces the old binding.
func (s *WsServer) HandleAnnounce(ctx context.Context, client *Client, frame *Frame) error {
	var data AnnounceData
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return client.pushError(constant.EventSendError, "", ErrInvalidProtocol)
		}
	}

	// The announced id must match the authenticated user
	if data.UserId != "" && data.UserId != client.UserId {
		return client.pushError(constant.EventSendError, "", ErrUserIdMismatch)
	}

	replaced := s.presence.Bind(ctx, client)
	client.announced.Store(true)

	if replaced != nil {
		log.CtxInfo(ctx, "connection replaced: user_id=%s, old_conn_id=%s, new_conn_id=%s",
			client.UserId, replaced.ConnId, client.ConnId)
		_ = replaced.Close()
	}

	s.chatService.TouchLastLoggedIn(ctx, client.UserId)

	log.CtxInfo(ctx, "client announced: user_id=%s, conn_id=%s, online_users=%d",
		client.UserId, client.ConnId, s.presence.Count())

	s.broadcastPresence()
	return nil
}

// HandleSend persists and fans out a message sent over the websocket. The
// sender always gets either a confirmation or an error frame back.
func (s *WsServer) HandleSend(ctx context.Context, client *Client, frame *Frame) error {
	var data SendData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return client.pushError(constant.EventSendError, "", ErrInvalidProtocol)
	}

	if !client.announced.Load() {
		return client.pushError(constant.EventSendError, data.ClientMsgId, ErrNotAnnounced)
	}

	msg, err := s.chatService.SendMessage(ctx, client.UserId, &service.SendMessageRequest{
		ClientMsgId: data.ClientMsgId,
		RecvId:      data.RecvId,
		Kind:        data.Kind,
		Content:     data.Content,
		File:        data.File,
	})
	if err != nil {
		code := 1
		if e, ok := err.(*errcode.Error); ok {
			code = e.Code
		}
		log.CtxWarn(ctx, "ws send failed: user_id=%s, error=%v", client.UserId, err)
		return client.write(mustMarshal(&Frame{
			Event:   constant.EventSendError,
			ErrCode: code,
			ErrMsg:  err.Error(),
			Data: mustMarshal(&SendErrorData{
				ClientMsgId: data.ClientMsgId,
				Code:        code,
				Msg:         err.Error(),
			}),
		}))
	}

	// Confirmation always goes back to the sender so its cache can swap the
	// optimistic entry for the durable row
	return client.Push(constant.EventSendConfirmation, msg.ToMessageInfo())
}
