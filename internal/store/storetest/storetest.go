// Package storetest is a conformance suite run against every store backend.
package storetest

import (
	"context"
	"testing"

	"github.com/pliu/chatterbox/internal/apperr"
	"github.com/pliu/chatterbox/internal/models"
	"github.com/pliu/chatterbox/internal/store"
	"github.com/stretchr/testify/require"
)

// Run executes the suite. newStore must return an empty store; it is called
// once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGetUser", testCreateAndGetUser},
		{"DuplicateEmail", testDuplicateEmail},
		{"MissingUser", testMissingUser},
		{"UpdateUserToken", testUpdateUserToken},
		{"ListUsers", testListUsers},
		{"Conversations", testConversations},
		{"MissingConversation", testMissingConversation},
		{"MessagesInOrder", testMessagesInOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func createUser(t *testing.T, s store.Store, name, email string) *models.User {
	t.Helper()
	user := &models.User{FullName: name, Email: email, Password: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func testCreateAndGetUser(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	user := createUser(t, s, "Alice Liddell", "alice@example.com")
	req.NotEmpty(user.ID)
	req.False(user.CreatedAt.IsZero())

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(user.ID, byEmail.ID)
	req.Equal("Alice Liddell", byEmail.FullName)
	req.Equal("hash", byEmail.Password)

	byID, err := s.GetUserByID(ctx, user.ID)
	req.NoError(err)
	req.Equal("alice@example.com", byID.Email)
}

func testDuplicateEmail(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	first := createUser(t, s, "Alice", "alice@example.com")

	err := s.CreateUser(ctx, &models.User{FullName: "Impostor", Email: "alice@example.com", Password: "other"})
	req.ErrorIs(err, apperr.ErrConflict)

	stored, err := s.GetUserByEmail(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(first.ID, stored.ID)
	req.Equal("Alice", stored.FullName)
	req.Equal("hash", stored.Password)
}

func testMissingUser(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	_, err := s.GetUserByEmail(ctx, "nobody@example.com")
	req.ErrorIs(err, apperr.ErrNotFound)

	_, err = s.GetUserByID(ctx, store.NewID())
	req.ErrorIs(err, apperr.ErrNotFound)

	err = s.UpdateUserToken(ctx, store.NewID(), "token")
	req.ErrorIs(err, apperr.ErrNotFound)
}

func testUpdateUserToken(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	user := createUser(t, s, "Bob", "bob@example.com")
	req.NoError(s.UpdateUserToken(ctx, user.ID, "first"))
	req.NoError(s.UpdateUserToken(ctx, user.ID, "second"))

	stored, err := s.GetUserByID(ctx, user.ID)
	req.NoError(err)
	req.Equal("second", stored.Token)
	req.Equal("hash", stored.Password)
}

func testListUsers(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	users, err := s.ListUsers(ctx)
	req.NoError(err)
	req.Empty(users)

	a := createUser(t, s, "Alice", "alice@example.com")
	b := createUser(t, s, "Bob", "bob@example.com")

	users, err = s.ListUsers(ctx)
	req.NoError(err)
	req.Len(users, 2)
	req.Equal(a.ID, users[0].ID)
	req.Equal(b.ID, users[1].ID)
}

func testConversations(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	first := &models.Conversation{Members: []string{"alice", "bob"}}
	req.NoError(s.CreateConversation(ctx, first))
	req.NotEmpty(first.ID)

	// Same pair again is a separate conversation.
	second := &models.Conversation{Members: []string{"bob", "alice"}}
	req.NoError(s.CreateConversation(ctx, second))
	req.NotEqual(first.ID, second.ID)

	other := &models.Conversation{Members: []string{"carol", "dave"}}
	req.NoError(s.CreateConversation(ctx, other))

	got, err := s.GetConversation(ctx, first.ID)
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, got.Members)

	forAlice, err := s.ListConversationsByMember(ctx, "alice")
	req.NoError(err)
	req.Len(forAlice, 2)
	req.Equal(first.ID, forAlice[0].ID)
	req.Equal(second.ID, forAlice[1].ID)
	req.Equal([]string{"bob", "alice"}, forAlice[1].Members)

	forNobody, err := s.ListConversationsByMember(ctx, "nobody")
	req.NoError(err)
	req.Empty(forNobody)
}

func testMissingConversation(t *testing.T, s store.Store) {
	req := require.New(t)

	_, err := s.GetConversation(context.Background(), store.NewID())
	req.ErrorIs(err, apperr.ErrNotFound)
}

func testMessagesInOrder(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	texts := []string{"hi", "hello", "how are you", "fine", "bye"}
	for i, text := range texts {
		sender := "alice"
		if i%2 == 1 {
			sender = "bob"
		}
		m := &models.Message{ConversationID: "conv-1", SenderID: sender, Text: text}
		req.NoError(s.CreateMessage(ctx, m))
		req.NotEmpty(m.ID)
	}
	req.NoError(s.CreateMessage(ctx, &models.Message{ConversationID: "conv-2", SenderID: "carol", Text: "elsewhere"}))

	messages, err := s.ListMessages(ctx, "conv-1")
	req.NoError(err)
	req.Len(messages, len(texts))
	for i, m := range messages {
		req.Equal(texts[i], m.Text)
		req.Equal("conv-1", m.ConversationID)
	}
	req.Equal("bob", messages[1].SenderID)

	empty, err := s.ListMessages(ctx, "conv-missing")
	req.NoError(err)
	req.Empty(empty)
}
