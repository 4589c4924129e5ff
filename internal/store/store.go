//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pliu/chatterbox/internal/models"
)

// UserStore persists user records. Lookups of absent users return
// apperr.ErrNotFound, a second user with an existing email apperr.ErrConflict.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserToken(ctx context.Context, id, token string) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, conversation *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversationsByMember(ctx context.Context, userID string) ([]models.Conversation, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, message *models.Message) error
	// ListMessages returns the messages of a conversation in insertion order.
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

type Store interface {
	UserStore
	ConversationStore
	MessageStore
	Close() error
}

// NewID returns a time-ordered identifier, so sorting by id sorts by creation.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
