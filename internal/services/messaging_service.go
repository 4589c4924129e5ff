package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pliu/chatterbox/internal/apperr"
	"github.com/pliu/chatterbox/internal/models"
	"github.com/pliu/chatterbox/internal/store"
	"github.com/samber/lo"
)

const (
	msgFillRequiredFields   = "Please fill all required fields"
	msgNoConversationTarget = "please fill all required fields"
	msgMembersRequired      = "senderId and receiverId are required"
	msgUserNotFound         = "User not found"
)

// Notifier is told about every stored message. The websocket hub is the
// production implementation.
type Notifier interface {
	NotifyMessage(event models.MessageEvent)
}

type CreateConversationRequest struct {
	SenderID   string `json:"senderId" schema:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" schema:"receiverId" validate:"required"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversationId" schema:"conversationId"`
	SenderID       string `json:"senderId" schema:"senderId" validate:"required"`
	Message        string `json:"message" schema:"message" validate:"required"`
	ReceiverID     string `json:"receiverId" schema:"receiverId"`
}

type MessagingService struct {
	users         store.UserStore
	conversations store.ConversationStore
	messages      store.MessageStore
	notifier      Notifier
	log           *slog.Logger
}

// NewMessagingService wires the service. notifier may be nil.
func NewMessagingService(users store.UserStore, conversations store.ConversationStore,
	messages store.MessageStore, notifier Notifier, log *slog.Logger) *MessagingService {
	return &MessagingService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
		log:           log,
	}
}

func (s *MessagingService) CreateConversation(ctx context.Context, req CreateConversationRequest) (*models.Conversation, error) {
	if err := requireFields(req, msgMembersRequired); err != nil {
		return nil, err
	}

	conversation := &models.Conversation{Members: []string{req.SenderID, req.ReceiverID}}
	if err := s.conversations.CreateConversation(ctx, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

// ListConversations pairs every conversation userID belongs to with the
// profile of the other member.
func (s *MessagingService) ListConversations(ctx context.Context, userID string) ([]models.ConversationView, error) {
	conversations, err := s.conversations.ListConversationsByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	views := make([]models.ConversationView, 0, len(conversations))
	for _, c := range conversations {
		other, err := s.profile(ctx, c.OtherMember(userID))
		if err != nil {
			return nil, err
		}
		views = append(views, models.ConversationView{User: other, ConversationID: c.ID})
	}
	return views, nil
}

func (s *MessagingService) SendMessage(ctx context.Context, req SendMessageRequest) (*models.Message, error) {
	if err := requireFields(req, msgFillRequiredFields); err != nil {
		return nil, err
	}

	var members []string
	switch {
	case req.ConversationID == "" && req.ReceiverID != "":
		conversation, err := s.CreateConversation(ctx, CreateConversationRequest{
			SenderID:   req.SenderID,
			ReceiverID: req.ReceiverID,
		})
		if err != nil {
			return nil, err
		}
		req.ConversationID = conversation.ID
		members = conversation.Members
	case req.ConversationID == "":
		return nil, apperr.Validation(msgNoConversationTarget)
	}

	message := &models.Message{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Text:           req.Message,
	}
	if err := s.messages.CreateMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.notify(ctx, message, members)
	return message, nil
}

// notify publishes the stored message. Messages may reference a conversation
// that does not exist; those have nobody to notify.
func (s *MessagingService) notify(ctx context.Context, message *models.Message, members []string) {
	if s.notifier == nil {
		return
	}
	if members == nil {
		conversation, err := s.conversations.GetConversation(ctx, message.ConversationID)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				s.log.Warn("resolve conversation for notification", "conversation_id", message.ConversationID, "error", err)
			}
			return
		}
		members = conversation.Members
	}

	s.notifier.NotifyMessage(models.MessageEvent{
		Type:           models.EventTypeMessage,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Message:        message.Text,
		CreatedAt:      message.CreatedAt,
		Members:        lo.Uniq(members),
	})
}

// ListMessages returns the conversation's messages in send order, each with
// the sender's profile. An empty id yields an empty list.
func (s *MessagingService) ListMessages(ctx context.Context, conversationID string) ([]models.MessageView, error) {
	if conversationID == "" {
		return []models.MessageView{}, nil
	}

	messages, err := s.messages.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Senders repeat, look each one up once.
	profiles := make(map[string]models.Profile)
	views := make([]models.MessageView, 0, len(messages))
	for _, m := range messages {
		sender, ok := profiles[m.SenderID]
		if !ok {
			sender, err = s.profile(ctx, m.SenderID)
			if err != nil {
				return nil, err
			}
			profiles[m.SenderID] = sender
		}
		views = append(views, models.MessageView{User: sender, Message: m.Text})
	}
	return views, nil
}

func (s *MessagingService) ListUsers(ctx context.Context) ([]models.UserView, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return lo.Map(users, func(u models.User, _ int) models.UserView {
		return models.UserView{User: u.Profile(), UserID: u.ID}
	}), nil
}

func (s *MessagingService) profile(ctx context.Context, userID string) (models.Profile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Profile{}, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	return user.Profile(), nil
}
