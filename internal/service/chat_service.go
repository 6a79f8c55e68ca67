package service

import (
	"context"
	"strings"
	"time"

	"github.com/enlighten-app/enlighten-chat/internal/config"
	"github.com/enlighten-app/enlighten-chat/internal/entity"
	"github.com/enlighten-app/enlighten-chat/internal/notify"
	"github.com/enlighten-app/enlighten-chat/internal/repository"
	"github.com/enlighten-app/enlighten-chat/internal/translate"
	"github.com/enlighten-app/enlighten-chat/pkg/constant"
	"github.com/enlighten-app/enlighten-chat/pkg/errcode"
	"github.com/google/uuid"
	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"
)

// MessagePusher interface for pushing realtime events to connected users
type MessagePusher interface {
	AsyncPushToUsers(event string, payload interface{}, userIds []string)
}

// ChatService handles messaging business logic
type ChatService struct {
	userRepo    *repository.UserRepo
	profileRepo *repository.ProfileRepo
	convRepo    *repository.ConversationRepo
	msgRepo     *repository.MessageRepo
	repos       *repository.Repositories
	translator  translate.Translator
	notifier    notify.Notifier
	pusher      MessagePusher

	translateTimeout time.Duration
}

// NewChatService creates a new ChatService
func NewChatService(repos *repository.Repositories, translator translate.Translator, notifier notify.Notifier) *ChatService {
	timeout := 5 * time.Second
	if config.GlobalConfig != nil && config.GlobalConfig.Translation.Timeout > 0 {
		timeout = config.GlobalConfig.Translation.Timeout
	}
	if translator == nil {
		translator = translate.Noop{}
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &ChatService{
		userRepo:         repos.User,
		profileRepo:      repos.Profile,
		convRepo:         repos.Conversation,
		msgRepo:          repos.Message,
		repos:            repos,
		translator:       translator,
		notifier:         notifier,
		translateTimeout: timeout,
	}
}

// SetPusher sets the realtime event pusher
func (s *ChatService) SetPusher(pusher MessagePusher) {
	s.pusher = pusher
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ClientMsgId string         `json:"client_msg_id"`
	RecvId      string         `json:"recv_id"`
	Kind        int32          `json:"kind"`
	Content     string         `json:"content,omitempty"`
	File        entity.FileRef `json:"file,omitempty"`
}

// SendMessage validates, persists and fans out a message. Translation and
// notification are best effort; a failure in either never fails the send.
func (s *ChatService) SendMessage(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	if req.RecvId == "" || req.RecvId == senderId {
		return nil, errcode.ErrInvalidParam
	}
	if strings.TrimSpace(req.Content) == "" && req.File.IsZero() {
		return nil, errcode.ErrEmptyMessage
	}
	kind := req.Kind
	if kind == 0 {
		kind = constant.KindText
	}
	if constant.KindName(kind) == "unknown" {
		return nil, errcode.ErrInvalidParam
	}

	recipient, err := s.userRepo.GetById(ctx, req.RecvId)
	if err != nil {
		log.CtxError(ctx, "load recipient failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if recipient == nil {
		return nil, errcode.ErrUserNotFound
	}

	// Idempotency: a resent client_msg_id returns the stored row. Sends
	// without one get a server-assigned id so the unique index always has a
	// usable key.
	if req.ClientMsgId == "" {
		req.ClientMsgId = uuid.NewString()
	} else {
		existing, err := s.msgRepo.GetByClientMsgId(ctx, senderId, req.ClientMsgId)
		if err != nil {
			log.CtxError(ctx, "check idempotency failed: %v", err)
			return nil, errcode.ErrInternalServer
		}
		if existing != nil {
			log.CtxDebug(ctx, "duplicate message: client_msg_id=%s", req.ClientMsgId)
			return existing, nil
		}
	}

	conv, err := s.convRepo.FindOrCreate(ctx, senderId, req.RecvId)
	if err != nil {
		log.CtxError(ctx, "find or create conversation failed: %v", err)
		return nil, errcode.ErrSendFailed
	}

	msg := &entity.Message{
		ConversationId: conv.ConversationId,
		ClientMsgId:    req.ClientMsgId,
		SenderId:       senderId,
		RecvId:         req.RecvId,
		Kind:           kind,
		ContentText:    strings.TrimSpace(req.Content),
		SentAt:         entity.NowUnixMilli(),
	}
	msg.SetFile(req.File)

	// Translate before the write so the stored row already carries the
	// recipient's rendering. The call is bounded and its failure is only
	// logged; the original text always goes through.
	if kind == constant.KindText && msg.ContentText != "" {
		s.attachTranslation(ctx, msg, req.RecvId)
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.msgRepo.Create(ctx, tx, msg); err != nil {
			return err
		}
		return s.convRepo.Touch(ctx, tx, conv.ConversationId)
	})
	if err != nil {
		// Two concurrent resends can both pass the pre-check; the unique
		// index on (sender_id, client_msg_id) fails the loser here
		if existing, qerr := s.msgRepo.GetByClientMsgId(ctx, senderId, msg.ClientMsgId); qerr == nil && existing != nil {
			return existing, nil
		}
		if e, ok := err.(*errcode.Error); ok {
			return nil, e
		}
		log.CtxError(ctx, "send message failed: %v", err)
		return nil, errcode.ErrSendFailed
	}

	s.notifyNewMessage(ctx, senderId, msg)

	// Push is at most once; an offline recipient picks the message up from
	// the durable store on the next history fetch
	if s.pusher != nil {
		s.pusher.AsyncPushToUsers(constant.EventReceive, msg.ToMessageInfo(), []string{req.RecvId})
	}

	log.CtxInfo(ctx, "message sent: sender_id=%s, recv_id=%s, id=%d", senderId, req.RecvId, msg.Id)
	return msg, nil
}

// attachTranslation renders the text into the recipient's preferred language.
// Recipients on the platform default language get the original text as is.
func (s *ChatService) attachTranslation(ctx context.Context, msg *entity.Message, recvId string) {
	lang := constant.DefaultLanguage
	profile, err := s.profileRepo.GetByUserId(ctx, recvId)
	if err != nil {
		log.CtxWarn(ctx, "load recipient profile failed: %v", err)
	}
	if profile != nil && profile.TranslateLanguage != "" {
		lang = profile.TranslateLanguage
	}
	if lang == constant.DefaultLanguage {
		return
	}

	tctx, cancel := context.WithTimeout(ctx, s.translateTimeout)
	defer cancel()

	translated, err := s.translator.Translate(tctx, msg.ContentText, lang)
	if err != nil {
		log.CtxWarn(ctx, "translate failed, delivering original text: lang=%s, error=%v", lang, err)
		return
	}
	if translated != "" {
		msg.SetTranslation(lang, translated)
	}
}

// notifyNewMessage hands the message to the notification pipeline. Failures
// are logged and swallowed.
func (s *ChatService) notifyNewMessage(ctx context.Context, senderId string, msg *entity.Message) {
	senderName := senderId
	if sender, err := s.userRepo.GetById(ctx, senderId); err == nil && sender != nil {
		senderName = sender.Name
	}

	preview := msg.ContentText
	if preview == "" {
		preview = msg.FileName
	}
	if len(preview) > 120 {
		preview = preview[:120]
	}

	err := s.notifier.NotifyNewMessage(ctx, &notify.Event{
		RecipientId:    msg.RecvId,
		SenderId:       senderId,
		SenderName:     senderName,
		ConversationId: msg.ConversationId,
		Preview:        preview,
		SentAt:         msg.SentAt,
	})
	if err != nil {
		log.CtxWarn(ctx, "notify new message failed: %v", err)
	}
}

// GetHistory returns the full ordered message sequence between two users and
// marks the viewer's peer messages as read. The viewer must be one of the
// pair.
func (s *ChatService) GetHistory(ctx context.Context, viewerId, userA, userB string) ([]*entity.MessageInfo, error) {
	if viewerId != userA && viewerId != userB {
		return nil, errcode.ErrForbidden
	}

	conv, err := s.convRepo.GetByPair(ctx, userA, userB)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: %v", err)
		return nil, errcode.ErrHistoryFailed
	}
	if conv == nil {
		// No conversation yet: viewing is not an error, just empty
		return []*entity.MessageInfo{}, nil
	}

	messages, err := s.msgRepo.History(ctx, conv.ConversationId)
	if err != nil {
		log.CtxError(ctx, "get history failed: %v", err)
		return nil, errcode.ErrHistoryFailed
	}

	// Viewing marks peer messages read. Best effort: a failure here must
	// not hide the history from the viewer.
	if _, err := s.msgRepo.MarkPeerMessagesRead(ctx, conv.ConversationId, viewerId); err != nil {
		log.CtxWarn(ctx, "mark messages read failed: conversation_id=%s, error=%v", conv.ConversationId, err)
	} else {
		for _, m := range messages {
			if m.SenderId != viewerId {
				m.Read = true
			}
		}
	}

	result := make([]*entity.MessageInfo, 0, len(messages))
	for _, m := range messages {
		result = append(result, m.ToMessageInfo())
	}
	return result, nil
}

// ListConversations returns the caller's conversations with peer info, last
// message and unread count, most recent activity first.
func (s *ChatService) ListConversations(ctx context.Context, userId string) ([]*entity.ConversationSummary, error) {
	convs, err := s.convRepo.ListByUser(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	if len(convs) == 0 {
		return []*entity.ConversationSummary{}, nil
	}

	peerIds := make([]string, 0, len(convs))
	for _, conv := range convs {
		peerIds = append(peerIds, conv.PeerOf(userId))
	}

	users, err := s.userRepo.GetByIds(ctx, peerIds)
	if err != nil {
		log.CtxError(ctx, "load peers failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	userById := make(map[string]*entity.User, len(users))
	for _, u := range users {
		userById[u.Id] = u
	}

	profiles, err := s.profileRepo.GetByUserIds(ctx, peerIds)
	if err != nil {
		log.CtxWarn(ctx, "load peer profiles failed: %v", err)
		profiles = map[string]*entity.Profile{}
	}

	result := make([]*entity.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		peerId := conv.PeerOf(userId)
		peer, ok := userById[peerId]
		if !ok {
			// Peer account is gone; skip the thread rather than render
			// a broken entry
			continue
		}

		summary := &entity.ConversationSummary{
			ConversationId: conv.ConversationId,
			Peer:           peer.ToPeerInfo(profiles[peerId]),
			UpdatedAt:      conv.UpdatedAt,
		}

		if last, err := s.msgRepo.LastMessage(ctx, conv.ConversationId); err == nil && last != nil {
			summary.LastMessage = last.ToMessageInfo()
		}
		if unread, err := s.msgRepo.UnreadCount(ctx, conv.ConversationId, userId); err == nil {
			summary.UnreadCount = unread
		}

		result = append(result, summary)
	}

	return result, nil
}

// StartChat ensures a conversation with the peer exists and returns its
// summary. Repeated calls are idempotent.
func (s *ChatService) StartChat(ctx context.Context, userId, peerId string) (*entity.ConversationSummary, error) {
	if peerId == "" || peerId == userId {
		return nil, errcode.ErrInvalidParam
	}

	peer, err := s.userRepo.GetById(ctx, peerId)
	if err != nil {
		log.CtxError(ctx, "load peer failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if peer == nil {
		return nil, errcode.ErrUserNotFound
	}

	conv, err := s.convRepo.FindOrCreate(ctx, userId, peerId)
	if err != nil {
		log.CtxError(ctx, "find or create conversation failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	profile, _ := s.profileRepo.GetByUserId(ctx, peerId)

	summary := &entity.ConversationSummary{
		ConversationId: conv.ConversationId,
		Peer:           peer.ToPeerInfo(profile),
		UpdatedAt:      conv.UpdatedAt,
	}
	if last, err := s.msgRepo.LastMessage(ctx, conv.ConversationId); err == nil && last != nil {
		summary.LastMessage = last.ToMessageInfo()
	}
	if unread, err := s.msgRepo.UnreadCount(ctx, conv.ConversationId, userId); err == nil {
		summary.UnreadCount = unread
	}

	return summary, nil
}

// SearchUsers searches by name or email among the caller's connections
// (people they follow or who follow them).
func (s *ChatService) SearchUsers(ctx context.Context, userId, term string, limit int) ([]*entity.PeerInfo, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []*entity.PeerInfo{}, nil
	}

	profile, err := s.profileRepo.GetByUserId(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "load profile failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if profile == nil {
		return nil, errcode.ErrProfileNotFound
	}

	connectionIds := profile.ConnectionIds()
	if len(connectionIds) == 0 {
		return []*entity.PeerInfo{}, nil
	}

	users, err := s.userRepo.SearchAmong(ctx, connectionIds, userId, term, limit)
	if err != nil {
		log.CtxError(ctx, "search users failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	profiles, err := s.profileRepo.GetByUserIds(ctx, collectIds(users))
	if err != nil {
		profiles = map[string]*entity.Profile{}
	}

	result := make([]*entity.PeerInfo, 0, len(users))
	for _, u := range users {
		result = append(result, u.ToPeerInfo(profiles[u.Id]))
	}
	return result, nil
}

// TouchLastLoggedIn records activity when a user announces on the realtime
// channel. Best effort.
func (s *ChatService) TouchLastLoggedIn(ctx context.Context, userId string) {
	if err := s.profileRepo.TouchLastLoggedIn(ctx, userId, entity.NowUnixMilli()); err != nil {
		log.CtxWarn(ctx, "touch last_logged_in failed: user_id=%s, error=%v", userId, err)
	}
}

// DeleteUserData removes every conversation the user participates in along
// with the contained messages. Called by the account-deletion cascade.
func (s *ChatService) DeleteUserData(ctx context.Context, userId string) error {
	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		convIds, err := s.convRepo.DeleteByUser(ctx, tx, userId)
		if err != nil {
			return err
		}
		return s.msgRepo.DeleteByConversations(ctx, tx, convIds)
	})
	if err != nil {
		log.CtxError(ctx, "delete user chat data failed: user_id=%s, error=%v", userId, err)
		return errcode.ErrInternalServer
	}
	return nil
}

func collectIds(users []*entity.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.Id)
	}
	return ids
}
