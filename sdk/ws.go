package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is the websocket envelope, mirroring the server protocol
type Frame struct {
	Event   string          `json:"event"`
	ErrCode int             `json:"err_code,omitempty"`
	ErrMsg  string          `json:"err_msg,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SendErrorData reports a failed outgoing message
type SendErrorData struct {
	ClientMsgId string `json:"client_msg_id"`
	Code        int    `json:"code"`
	Msg         string `json:"msg"`
}

// PresenceData carries the online user id list
type PresenceData struct {
	Online []string `json:"online"`
}

// RealtimeHandlers are invoked from the read loop as events arrive. Nil
// handlers are skipped.
type RealtimeHandlers struct {
	OnReceive          func(msg *MessageInfo)
	OnSendConfirmation func(msg *MessageInfo)
	OnSendError        func(errData *SendErrorData)
	OnPresence         func(online []string)
	OnClose            func(err error)
}

// Realtime is the websocket side of the SDK. Incoming messages and send
// confirmations are merged into the attached cache before handlers run, so
// handler code always observes the deduplicated state.
type Realtime struct {
	conn     *websocket.Conn
	userId   string
	cache    *ConversationCache
	handlers RealtimeHandlers

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// ConnectRealtime dials the websocket endpoint and starts the read loop.
// baseURL is the ws:// or wss:// address of the server.
func ConnectRealtime(ctx context.Context, baseURL, token, userId string, cache *ConversationCache, handlers RealtimeHandlers) (*Realtime, error) {
	if cache == nil {
		cache = NewConversationCache()
	}

	u, err := url.Parse(baseURL + "/ws")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	r := &Realtime{
		conn:     conn,
		userId:   userId,
		cache:    cache,
		handlers: handlers,
		closed:   make(chan struct{}),
	}

	go r.readLoop()
	return r, nil
}

// Cache returns the conversation cache the realtime client merges into
func (r *Realtime) Cache() *ConversationCache {
	return r.cache
}

// Announce binds this connection to the user for delivery. Call it right
// after connecting and again after any reconnect.
func (r *Realtime) Announce() error {
	return r.writeFrame(EventAnnounce, map[string]string{"user_id": r.userId})
}

// Send transmits a message over the websocket. An optimistic copy lands in
// the cache immediately; the send_confirmation upgrade fills in the durable
// id when the server answers.
func (r *Realtime) Send(req *SendMessageRequest) error {
	if req.ClientMsgId == "" {
		req.ClientMsgId = NewClientMsgId()
	}

	optimistic := &MessageInfo{
		ClientMsgId: req.ClientMsgId,
		SenderId:    r.userId,
		RecvId:      req.RecvId,
		Kind:        req.Kind,
		Content:     req.Content,
		SentAt:      time.Now().UnixMilli(),
	}
	if !isZeroFile(req.File) {
		f := req.File
		optimistic.File = &f
	}
	r.cache.Merge(PairConversationId(r.userId, req.RecvId), optimistic)

	return r.writeFrame(EventSend, req)
}

// Close shuts the connection down
func (r *Realtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		err = r.conn.Close()
	})
	return err
}

func (r *Realtime) writeFrame(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame := &Frame{Event: event, Data: data}
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(websocket.TextMessage, raw)
}

func (r *Realtime) readLoop() {
	defer r.Close()

	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.closed:
			default:
				if r.handlers.OnClose != nil {
					r.handlers.OnClose(err)
				}
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		r.dispatch(&frame)
	}
}

func (r *Realtime) dispatch(frame *Frame) {
	switch frame.Event {
	case EventReceive:
		var msg MessageInfo
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return
		}
		r.cache.Merge(msg.ConversationId, &msg)
		if r.handlers.OnReceive != nil {
			r.handlers.OnReceive(&msg)
		}

	case EventSendConfirmation:
		var msg MessageInfo
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return
		}
		r.cache.Merge(msg.ConversationId, &msg)
		if r.handlers.OnSendConfirmation != nil {
			r.handlers.OnSendConfirmation(&msg)
		}

	case EventSendError:
		var errData SendErrorData
		if err := json.Unmarshal(frame.Data, &errData); err != nil {
			return
		}
		if r.handlers.OnSendError != nil {
			r.handlers.OnSendError(&errData)
		}

	case EventPresence:
		var presence PresenceData
		if err := json.Unmarshal(frame.Data, &presence); err != nil {
			return
		}
		if r.handlers.OnPresence != nil {
			r.handlers.OnPresence(presence.Online)
		}
	}
}

func isZeroFile(f FileRef) bool {
	return f.Url == ""
}
