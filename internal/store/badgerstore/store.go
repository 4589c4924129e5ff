package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pliu/chatterbox/internal/apperr"
	"github.com/pliu/chatterbox/internal/models"
	"github.com/pliu/chatterbox/internal/store"
)

// Key layout:
//
//	user:{id}                 -> user record
//	email:{email}             -> user id
//	conv:{id}                 -> conversation record
//	member:{userId}:{convId}  -> empty, membership index
//	msg:{convId}:{msgId}      -> message record
//
// Ids are time ordered, so a prefix scan returns records in creation order.
type BadgerStore struct {
	db *badger.DB
}

var _ store.Store = (*BadgerStore)(nil)

type userRecord struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type conversationRecord struct {
	ID        string    `json:"id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Open opens a store in dir. An empty dir keeps everything in memory.
func Open(dir string, log *slog.Logger) (*BadgerStore, error) {
	if log == nil {
		log = slog.Default()
	}
	options := badger.DefaultOptions(dir).WithLogger(badgerLogger{log: log})
	if dir == "" {
		options = options.WithInMemory(true)
	}
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func userKey(id string) []byte { return []byte("user:" + id) }

func emailKey(email string) []byte { return []byte("email:" + email) }

func conversationKey(id string) []byte { return []byte("conv:" + id) }

func memberKey(userID, conversationID string) []byte {
	return []byte("member:" + userID + ":" + conversationID)
}

func messagePrefix(conversationID string) []byte {
	return []byte("msg:" + conversationID + ":")
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

// scanPrefix calls fn with the value of every key under prefix, in key order.
func scanPrefix(txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		err := item.Value(func(val []byte) error {
			return fn(key, val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) CreateUser(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = store.NewID()
	}
	user.CreatedAt = time.Now().UTC()

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(user.Email)); err == nil {
			return apperr.Conflict("User already exist")
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(emailKey(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return setJSON(txn, userKey(user.ID), fromUser(user))
	})
	// A concurrent transaction touched the same email key first.
	if errors.Is(err, badger.ErrConflict) {
		return apperr.Conflict("User already exist")
	}
	return err
}

func (s *BadgerStore) getUser(txn *badger.Txn, id string) (*models.User, error) {
	var record userRecord
	err := getJSON(txn, userKey(id), &record)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	return record.toModel(), nil
}

func (s *BadgerStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	var user *models.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperr.NotFound("User not found")
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = s.getUser(txn, string(id))
		return err
	})
	return user, err
}

func (s *BadgerStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	var user *models.User
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = s.getUser(txn, id)
		return err
	})
	return user, err
}

func (s *BadgerStore) UpdateUserToken(_ context.Context, id, token string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		user, err := s.getUser(txn, id)
		if err != nil {
			return err
		}
		user.Token = token
		return setJSON(txn, userKey(id), fromUser(user))
	})
}

func (s *BadgerStore) ListUsers(_ context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte("user:"), func(_, val []byte) error {
			var record userRecord
			if err := json.Unmarshal(val, &record); err != nil {
				return err
			}
			users = append(users, *record.toModel())
			return nil
		})
	})
	return users, err
}

func (s *BadgerStore) CreateConversation(_ context.Context, conversation *models.Conversation) error {
	if len(conversation.Members) != 2 {
		return fmt.Errorf("conversation needs 2 members, got %d", len(conversation.Members))
	}
	if conversation.ID == "" {
		conversation.ID = store.NewID()
	}
	conversation.CreatedAt = time.Now().UTC()

	return s.db.Update(func(txn *badger.Txn) error {
		record := conversationRecord{
			ID:        conversation.ID,
			Members:   conversation.Members,
			CreatedAt: conversation.CreatedAt,
		}
		if err := setJSON(txn, conversationKey(conversation.ID), record); err != nil {
			return err
		}
		for _, member := range conversation.Members {
			if err := txn.Set(memberKey(member, conversation.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) getConversation(txn *badger.Txn, id string) (*models.Conversation, error) {
	var record conversationRecord
	err := getJSON(txn, conversationKey(id), &record)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperr.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, err
	}
	return &models.Conversation{ID: record.ID, Members: record.Members, CreatedAt: record.CreatedAt}, nil
}

func (s *BadgerStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	var conversation *models.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		conversation, err = s.getConversation(txn, id)
		return err
	})
	return conversation, err
}

func (s *BadgerStore) ListConversationsByMember(_ context.Context, userID string) ([]models.Conversation, error) {
	prefix := []byte("member:" + userID + ":")
	var conversations []models.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, func(key, _ []byte) error {
			conversation, err := s.getConversation(txn, string(key[len(prefix):]))
			// user ids containing ':' can share a prefix with another user
			if errors.Is(err, apperr.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if conversation.HasMember(userID) {
				conversations = append(conversations, *conversation)
			}
			return nil
		})
	})
	return conversations, err
}

func (s *BadgerStore) CreateMessage(_ context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = store.NewID()
	}
	message.CreatedAt = time.Now().UTC()

	key := append(messagePrefix(message.ConversationID), message.ID...)
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key, messageRecord{
			ID:             message.ID,
			ConversationID: message.ConversationID,
			SenderID:       message.SenderID,
			Message:        message.Text,
			CreatedAt:      message.CreatedAt,
		})
	})
}

func (s *BadgerStore) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, messagePrefix(conversationID), func(_, val []byte) error {
			var record messageRecord
			if err := json.Unmarshal(val, &record); err != nil {
				return err
			}
			if record.ConversationID != conversationID {
				return nil
			}
			messages = append(messages, models.Message{
				ID:             record.ID,
				ConversationID: record.ConversationID,
				SenderID:       record.SenderID,
				Text:           record.Message,
				CreatedAt:      record.CreatedAt,
			})
			return nil
		})
	})
	return messages, err
}

func fromUser(u *models.User) userRecord {
	return userRecord{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Password:  u.Password,
		Token:     u.Token,
		CreatedAt: u.CreatedAt,
	}
}

func (r userRecord) toModel() *models.User {
	return &models.User{
		ID:        r.ID,
		FullName:  r.FullName,
		Email:     r.Email,
		Password:  r.Password,
		Token:     r.Token,
		CreatedAt: r.CreatedAt,
	}
}
