package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/enlighten-app/enlighten-chat/internal/entity"
	"github.com/enlighten-app/enlighten-chat/internal/notify"
	"github.com/enlighten-app/enlighten-chat/internal/repository"
	"github.com/enlighten-app/enlighten-chat/pkg/constant"
	"github.com/enlighten-app/enlighten-chat/pkg/errcode"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingTranslator struct {
	calls []string
	reply string
	err   error
}

func (tr *recordingTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	tr.calls = append(tr.calls, targetLanguage)
	if tr.err != nil {
		return "", tr.err
	}
	return tr.reply, nil
}

type failingNotifier struct{}

func (failingNotifier) NotifyNewMessage(ctx context.Context, evt *notify.Event) error {
	return errors.New("broker down")
}

func (failingNotifier) Close() error { return nil }

type recordingPusher struct {
	events  []string
	targets [][]string
}

func (p *recordingPusher) AsyncPushToUsers(event string, payload interface{}, userIds []string) {
	p.events = append(p.events, event)
	p.targets = append(p.targets, userIds)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entity.User{}, &entity.Profile{}, &entity.Conversation{}, &entity.Message{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, name, email string) {
	t.Helper()
	require.NoError(t, db.Create(&entity.User{Id: id, Name: name, Email: email}).Error)
}

func seedProfile(t *testing.T, db *gorm.DB, userId, lang string, connections []string) {
	t.Helper()
	p := &entity.Profile{UserId: userId, TranslateLanguage: lang}
	p.SetConnectionIds(connections)
	require.NoError(t, db.Create(p).Error)
}

func newTestService(t *testing.T, db *gorm.DB, tr *recordingTranslator) *ChatService {
	t.Helper()
	repos := repository.NewRepositoriesWithDB(db, nil)
	if tr == nil {
		tr = &recordingTranslator{reply: ""}
	}
	return NewChatService(repos, tr, failingNotifier{})
}

func TestSendMessageCreatesConversationOnce(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	msg1, err := svc.SendMessage(ctx, "alice", &SendMessageRequest{RecvId: "bob", Content: "hi"})
	require.NoError(t, err)

	// Reply goes through the same conversation even with the pair reversed
	msg2, err := svc.SendMessage(ctx, "bob", &SendMessageRequest{RecvId: "alice", Content: "hey"})
	require.NoError(t, err)

	assert.Equal(t, msg1.ConversationId, msg2.ConversationId)
	assert.Equal(t, entity.GenPairConversationId("bob", "alice"), msg1.ConversationId)

	var count int64
	require.NoError(t, db.Model(&entity.Conversation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSendMessageIdempotentResend(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	req := &SendMessageRequest{ClientMsgId: "cmid-1", RecvId: "bob", Content: "hello"}
	first, err := svc.SendMessage(ctx, "alice", req)
	require.NoError(t, err)

	second, err := svc.SendMessage(ctx, "alice", req)
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)

	var count int64
	require.NoError(t, db.Model(&entity.Message{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSendMessageAssignsClientMsgId(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	svc := newTestService(t, db, nil)

	msg, err := svc.SendMessage(context.Background(), "alice", &SendMessageRequest{RecvId: "bob", Content: "no id"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ClientMsgId)

	// A second send without an id is a distinct message, not a resend
	msg2, err := svc.SendMessage(context.Background(), "alice", &SendMessageRequest{RecvId: "bob", Content: "no id"})
	require.NoError(t, err)
	assert.NotEqual(t, msg.ClientMsgId, msg2.ClientMsgId)

	var count int64
	require.NoError(t, db.Model(&entity.Message{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestClientMsgIdUniquePerSender(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, "alice", &SendMessageRequest{ClientMsgId: "cmid-race", RecvId: "bob", Content: "one"})
	require.NoError(t, err)

	// A racing resend that slipped past the pre-check dies on the index
	repos := repository.NewRepositoriesWithDB(db, nil)
	dup := &entity.Message{
		ConversationId: first.ConversationId,
		ClientMsgId:    "cmid-race",
		SenderId:       "alice",
		RecvId:         "bob",
		Kind:           constant.KindText,
		ContentText:    "two",
		SentAt:         entity.NowUnixMilli(),
	}
	assert.Error(t, repos.Message.Create(ctx, db, dup))

	// The same id from the other sender is a different message
	reply := &entity.Message{
		ConversationId: first.ConversationId,
		ClientMsgId:    "cmid-race",
		SenderId:       "bob",
		RecvId:         "alice",
		Kind:           constant.KindText,
		ContentText:    "three",
		SentAt:         entity.NowUnixMilli(),
	}
	require.NoError(t, repos.Message.Create(ctx, db, reply))
}

func TestSendMessageValidation(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "alice", &SendMessageRequest{RecvId: "alice", Content: "self"})
	assert.Equal(t, errcode.ErrInvalidParam, err)

	_, err = svc.SendMessage(ctx, "alice", &SendMessageRequest{RecvId: "bob", Content: "   "})
	assert.Equal(t, errcode.ErrEmptyMessage, err)

	_, err = svc.SendMessage(ctx, "alice", &SendMessageRequest{RecvId: "ghost", Content: "anyone there"})
	assert.Equal(t, errcode.ErrUserNotFound, err)
}

func TestSendMessageTranslatesToRecipientLanguage(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	seedProfile(t, db, "bob", "spanish", nil)

	tr := &recordingTranslator{reply: "hola"}
	svc := newTestService(t, db, tr)

	msg, err := svc.SendMessage(context.Background(), "alice", &SendMessageRequest{RecvId: "bob", Content: "hello"})
	require.NoError(t, err)

	require.Equal(t, []string{"spanish"}, tr.calls)
	assert.Equal(t, "hola", msg.GetTranslations()["spanish"])
	assert.Equal(t, "hello", msg.ContentText)
}

func TestSendMessageTranslationFailureDeliversOriginal(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	seedProfile(t, db, "bob", "french", nil)

	tr := &recordingTranslator{err: errors.New("provider down")}
	svc := newTestService(t, db, tr)

	msg, err := svc.SendMessage(context.Background(), "alice", &SendMessageRequest{RecvId: "bob", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.ContentText)
	assert.Nil(t, msg.GetTranslations())
	assert.Equal(t, []string{"french"}, tr.calls)
}

func TestSendMessageSkipsTranslationForDefaultLanguage(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")

	tr := &recordingTranslator{reply: "should not be called"}
	svc := newTestService(t, db, tr)

	// Bob has no profile, so he reads the platform default language
	msg, err := svc.SendMessage(context.Background(), "alice", &SendMessageRequest{RecvId: "bob", Content: "hello"})
	require.NoError(t, err)
	assert.Nil(t, msg.GetTranslations())
	assert.Empty(t, tr.calls)
}

func TestSendMessagePushesReceiveToRecipient(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	svc := newTestService(t, db, nil)

	pusher := &recordingPusher{}
	svc.SetPusher(pusher)

	_, err := svc.SendMessage(context.Background(), "alice", &SendMessageRequest{RecvId: "bob", Content: "ping"})
	require.NoError(t, err)

	require.Len(t, pusher.events, 1)
	assert.Equal(t, constant.EventReceive, pusher.events[0])
	assert.Equal(t, []string{"bob"}, pusher.targets[0])
}

func TestGetHistoryOrdersAndMarksRead(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.SendMessage(ctx, "alice", &SendMessageRequest{RecvId: "bob", Content: text})
		require.NoError(t, err)
	}

	// Bob views the thread; both pair orderings resolve it
	messages, err := svc.GetHistory(ctx, "bob", "bob", "alice")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "three", messages[2].Content)
	for _, m := range messages {
		assert.True(t, m.Read)
	}

	convId := entity.GenPairConversationId("alice", "bob")
	repos := repository.NewRepositoriesWithDB(db, nil)
	unread, err := repos.Message.UnreadCount(ctx, convId, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}

func TestGetHistoryForbiddenForOutsider(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db, nil)

	_, err := svc.GetHistory(context.Background(), "mallory", "alice", "bob")
	assert.Equal(t, errcode.ErrForbidden, err)
}

func TestGetHistoryEmptyWithoutConversation(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db, nil)

	messages, err := svc.GetHistory(context.Background(), "alice", "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestListConversations(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	seedUser(t, db, "carol", "Carol", "carol@example.com")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "bob", &SendMessageRequest{RecvId: "alice", Content: "from bob"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "carol", &SendMessageRequest{RecvId: "alice", Content: "from carol"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "carol", &SendMessageRequest{RecvId: "alice", Content: "again"})
	require.NoError(t, err)

	// Pin activity order in case both sends landed in the same millisecond
	require.NoError(t, db.Model(&entity.Conversation{}).
		Where("conversation_id = ?", entity.GenPairConversationId("alice", "carol")).
		Update("updated_at", entity.NowUnixMilli()+10).Error)

	summaries, err := svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Most recent activity first
	assert.Equal(t, "carol", summaries[0].Peer.Id)
	assert.Equal(t, int64(2), summaries[0].UnreadCount)
	assert.Equal(t, "again", summaries[0].LastMessage.Content)

	assert.Equal(t, "bob", summaries[1].Peer.Id)
	assert.Equal(t, int64(1), summaries[1].UnreadCount)
}

func TestStartChatIdempotent(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	first, err := svc.StartChat(ctx, "alice", "bob")
	require.NoError(t, err)
	second, err := svc.StartChat(ctx, "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, first.ConversationId, second.ConversationId)
	assert.Equal(t, "bob", first.Peer.Id)

	var count int64
	require.NoError(t, db.Model(&entity.Conversation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = svc.StartChat(ctx, "alice", "ghost")
	assert.Equal(t, errcode.ErrUserNotFound, err)
}

func TestSearchUsersScopedToConnections(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob Martin", "bob@example.com")
	seedUser(t, db, "bruno", "Bruno", "bruno@example.com")
	seedProfile(t, db, "alice", "", []string{"bob"})
	svc := newTestService(t, db, nil)

	// Bruno matches the term but is not a connection
	users, err := svc.SearchUsers(context.Background(), "alice", "b", 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Id)
}

func TestOfflineRecipientCatchesUpOnFetch(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	// No pusher is attached, so delivery behaves as if bob were offline
	sent, err := svc.SendMessage(ctx, "alice", &SendMessageRequest{RecvId: "bob", Content: "Hello"})
	require.NoError(t, err)
	assert.False(t, sent.Read)

	// Bob comes back and fetches the thread
	messages, err := svc.GetHistory(ctx, "bob", "alice", "bob")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.True(t, messages[0].Read)

	summaries, err := svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(0), summaries[0].UnreadCount)
}

func TestDeleteUserDataCascades(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "alice", "Alice", "alice@example.com")
	seedUser(t, db, "bob", "Bob", "bob@example.com")
	svc := newTestService(t, db, nil)
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "alice", &SendMessageRequest{RecvId: "bob", Content: "bye"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUserData(ctx, "alice"))

	var convCount, msgCount int64
	require.NoError(t, db.Model(&entity.Conversation{}).Count(&convCount).Error)
	require.NoError(t, db.Model(&entity.Message{}).Count(&msgCount).Error)
	assert.Zero(t, convCount)
	assert.Zero(t, msgCount)
}
