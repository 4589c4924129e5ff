package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pliu/chatterbox/internal/apperr"
	"github.com/pliu/chatterbox/internal/models"
	"github.com/pliu/chatterbox/internal/store"
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

var _ store.Store = (*SQLStore)(nil)

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite3" {
		// sqlite allows a single writer, and every :memory: connection is a
		// separate database.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) createTables() error {
	// seq keeps insertion order; ids are opaque strings.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			full_name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			token TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS conversations_sender ON conversations (sender_id)`,
		`CREATE INDEX IF NOT EXISTS conversations_receiver ON conversations (receiver_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			conversation_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_conversation ON messages (conversation_id)`,
	}

	for _, query := range statements {
		if s.driverName == "postgres" {
			// Adjust for Postgres syntax
			query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
			query = strings.ReplaceAll(query, "DATETIME", "TIMESTAMPTZ")
		}
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = store.NewID()
	}
	user.CreatedAt = time.Now().UTC()

	query := s.rebind("INSERT INTO users (id, full_name, email, password, token, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, user.ID, user.FullName, user.Email, user.Password, user.Token, user.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("User already exist")
	}
	return err
}

const userColumns = "id, full_name, email, password, token, created_at"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.FullName, &user.Email, &user.Password, &user.Token, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE email = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) UpdateUserToken(ctx context.Context, id, token string) error {
	query := s.rebind("UPDATE users SET token = ? WHERE id = ?")
	result, err := s.db.ExecContext(ctx, query, token, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY seq ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (s *SQLStore) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	if len(conversation.Members) != 2 {
		return fmt.Errorf("conversation needs 2 members, got %d", len(conversation.Members))
	}
	if conversation.ID == "" {
		conversation.ID = store.NewID()
	}
	conversation.CreatedAt = time.Now().UTC()

	query := s.rebind("INSERT INTO conversations (id, sender_id, receiver_id, created_at) VALUES (?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, conversation.ID, conversation.Members[0], conversation.Members[1], conversation.CreatedAt)
	return err
}

func scanConversation(row interface{ Scan(...any) error }) (*models.Conversation, error) {
	var (
		c                    models.Conversation
		senderID, receiverID string
	)
	err := row.Scan(&c.ID, &senderID, &receiverID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, err
	}
	c.Members = []string{senderID, receiverID}
	return &c, nil
}

func (s *SQLStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := s.rebind("SELECT id, sender_id, receiver_id, created_at FROM conversations WHERE id = ?")
	return scanConversation(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) ListConversationsByMember(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := s.rebind(`
		SELECT id, sender_id, receiver_id, created_at
		FROM conversations
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY seq ASC
	`)
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

func (s *SQLStore) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = store.NewID()
	}
	message.CreatedAt = time.Now().UTC()

	query := s.rebind("INSERT INTO messages (id, conversation_id, sender_id, message, created_at) VALUES (?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, message.ID, message.ConversationID, message.SenderID, message.Text, message.CreatedAt)
	return err
}

func (s *SQLStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := s.rebind(`
		SELECT id, conversation_id, sender_id, message, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC
	`)
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
