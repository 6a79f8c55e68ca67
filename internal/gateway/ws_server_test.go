package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/enlighten-app/enlighten-chat/internal/config"
	"github.com/enlighten-app/enlighten-chat/internal/entity"
	"github.com/enlighten-app/enlighten-chat/internal/repository"
	"github.com/enlighten-app/enlighten-chat/internal/service"
	"github.com/enlighten-app/enlighten-chat/pkg/constant"
	"github.com/enlighten-app/enlighten-chat/pkg/errcode"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeConn records every written frame instead of touching a socket
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeConn) ReadMessage() ([]byte, error) { return nil, ErrConnClosed }

func (f *fakeConn) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) Close() error                       { return nil }
func (f *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeConn) lastFrame(t *testing.T) *Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.frames)

	var frame Frame
	require.NoError(t, json.Unmarshal(f.frames[len(f.frames)-1], &frame))
	return &frame
}

func newTestServer(t *testing.T) (*WsServer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entity.User{}, &entity.Profile{}, &entity.Conversation{}, &entity.Message{}))

	repos := repository.NewRepositoriesWithDB(db, nil)
	chatService := service.NewChatService(repos, nil, nil)

	cfg := &config.Config{}
	cfg.WebSocket = config.WebSocketConfig{
		MaxConnNum:      100,
		MaxMessageSize:  51200,
		PushChannelSize: 64,
		PushWorkerNum:   1,
	}

	server := NewWsServer(cfg, nil, chatService)
	chatService.SetPusher(server)
	return server, db
}

func seedUser(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Create(&entity.User{Id: id, Name: id, Email: id + "@example.com"}).Error)
}

func announce(t *testing.T, server *WsServer, client *Client) {
	t.Helper()
	require.NoError(t, server.HandleAnnounce(context.Background(), client, &Frame{Event: constant.EventAnnounce}))
	require.True(t, client.announced.Load())
}

func TestHandleSendConfirmsWithReceiverOffline(t *testing.T) {
	server, db := newTestServer(t)
	seedUser(t, db, "alice")
	seedUser(t, db, "bob")

	conn := &fakeConn{}
	client := NewClient(conn, "alice", 5, "conn-1", server)
	announce(t, server, client)

	frame := &Frame{Event: constant.EventSend, Data: mustMarshal(&SendData{
		ClientMsgId: "cmid-1",
		RecvId:      "bob",
		Content:     "hello",
	})}
	require.NoError(t, server.HandleSend(context.Background(), client, frame))

	// Bob has no bound connection; the sender still gets a confirmation
	got := conn.lastFrame(t)
	assert.Equal(t, constant.EventSendConfirmation, got.Event)

	var msg entity.MessageInfo
	require.NoError(t, json.Unmarshal(got.Data, &msg))
	assert.Equal(t, "cmid-1", msg.ClientMsgId)
	assert.Equal(t, "bob", msg.RecvId)
	assert.NotZero(t, msg.Id)
}

func TestHandleSendValidationErrorFrame(t *testing.T) {
	server, db := newTestServer(t)
	seedUser(t, db, "alice")
	seedUser(t, db, "bob")

	conn := &fakeConn{}
	client := NewClient(conn, "alice", 5, "conn-1", server)
	announce(t, server, client)

	frame := &Frame{Event: constant.EventSend, Data: mustMarshal(&SendData{
		ClientMsgId: "cmid-2",
		RecvId:      "bob",
		Content:     "   ",
	})}
	require.NoError(t, server.HandleSend(context.Background(), client, frame))

	got := conn.lastFrame(t)
	assert.Equal(t, constant.EventSendError, got.Event)
	assert.Equal(t, errcode.ErrEmptyMessage.Code, got.ErrCode)

	var errData SendErrorData
	require.NoError(t, json.Unmarshal(got.Data, &errData))
	assert.Equal(t, "cmid-2", errData.ClientMsgId)
	assert.Equal(t, errcode.ErrEmptyMessage.Code, errData.Code)
}

func TestHandleSendRequiresAnnounce(t *testing.T) {
	server, db := newTestServer(t)
	seedUser(t, db, "alice")
	seedUser(t, db, "bob")

	conn := &fakeConn{}
	client := NewClient(conn, "alice", 5, "conn-1", server)

	frame := &Frame{Event: constant.EventSend, Data: mustMarshal(&SendData{
		ClientMsgId: "cmid-3",
		RecvId:      "bob",
		Content:     "hi",
	})}
	require.NoError(t, server.HandleSend(context.Background(), client, frame))

	got := conn.lastFrame(t)
	assert.Equal(t, constant.EventSendError, got.Event)

	var errData SendErrorData
	require.NoError(t, json.Unmarshal(got.Data, &errData))
	assert.Equal(t, "cmid-3", errData.ClientMsgId)

	// Nothing was persisted
	var count int64
	require.NoError(t, db.Model(&entity.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleAnnounceClosesReplacedConnection(t *testing.T) {
	server, db := newTestServer(t)
	seedUser(t, db, "alice")

	first := NewClient(&fakeConn{}, "alice", 5, "conn-1", server)
	announce(t, server, first)

	second := NewClient(&fakeConn{}, "alice", 5, "conn-2", server)
	announce(t, server, second)

	assert.True(t, first.IsClosed())
	assert.False(t, second.IsClosed())

	current, ok := server.presence.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "conn-2", current.ConnId)
}

func TestHandleAnnounceRejectsMismatchedUserId(t *testing.T) {
	server, db := newTestServer(t)
	seedUser(t, db, "alice")

	conn := &fakeConn{}
	client := NewClient(conn, "alice", 5, "conn-1", server)

	frame := &Frame{Event: constant.EventAnnounce, Data: mustMarshal(&AnnounceData{UserId: "bob"})}
	require.NoError(t, server.HandleAnnounce(context.Background(), client, frame))

	assert.False(t, client.announced.Load())
	_, ok := server.presence.Get("alice")
	assert.False(t, ok)

	got := conn.lastFrame(t)
	assert.Equal(t, constant.EventSendError, got.Event)
}
