package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/enlighten-app/enlighten-chat/pkg/constant"
	"github.com/mbeoliero/kit/log"
)

// Client represents a connected WebSocket client. Delivery only starts once
// the client has announced; before that the connection is authenticated but
// unbound.
type Client struct {
	mu         sync.Mutex
	conn       ClientConn
	UserId     string
	PlatformId int
	ConnId     string
	server     *WsServer
	announced  atomic.Bool
	closed     atomic.Bool
	closedErr  error
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewClient creates a new client
func NewClient(conn ClientConn, userId string, platformId int, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:       conn,
		UserId:     userId,
		PlatformId: platformId,
		ConnId:     connId,
		server:     server,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// readLoop continuously reads frames from the connection
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		if err := c.handleFrame(message); err != nil {
			log.CtxWarn(c.ctx, "handle frame error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}
	}
}

// handleFrame dispatches a single incoming frame
func (c *Client) handleFrame(message []byte) error {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		return c.pushError(constant.EventSendError, "", ErrInvalidProtocol)
	}

	log.CtxDebug(c.ctx, "received frame: event=%s, user_id=%s", frame.Event, c.UserId)

	if c.announced.Load() {
		c.server.presence.Refresh(c.ctx, c.UserId)
	}

	switch frame.Event {
	case constant.EventAnnounce:
		return c.server.HandleAnnounce(c.ctx, c, &frame)
	case constant.EventSend:
		return c.server.HandleSend(c.ctx, c, &frame)
	default:
		return c.pushError(constant.EventSendError, "", ErrInvalidProtocol)
	}
}

// Push sends an event frame to the client
func (c *Client) Push(event string, payload interface{}) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	data, err := Encode(event, payload)
	if err != nil {
		return err
	}
	return c.write(data)
}

// pushError sends an error frame without failing the read loop
func (c *Client) pushError(event, clientMsgId string, err error) error {
	data, encErr := json.Marshal(&Frame{
		Event:   event,
		ErrCode: 1,
		ErrMsg:  err.Error(),
		Data: mustMarshal(&SendErrorData{
			ClientMsgId: clientMsgId,
			Code:        1,
			Msg:         err.Error(),
		}),
	})
	if encErr != nil {
		return encErr
	}
	return c.write(data)
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}
	return c.conn.WriteMessage(data)
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
