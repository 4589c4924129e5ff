package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pliu/chatterbox/internal/apperr"
	"github.com/pliu/chatterbox/internal/models"
	"github.com/pliu/chatterbox/internal/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection         = "users"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*MongoStore)(nil)

type userDoc struct {
	ID        string    `bson:"_id"`
	FullName  string    `bson:"fullName"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"`
	Token     string    `bson:"token,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

type conversationDoc struct {
	ID        string    `bson:"_id"`
	Members   []string  `bson:"members"`
	CreatedAt time.Time `bson:"created_at"`
}

type messageDoc struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversationId"`
	SenderID       string    `bson:"senderId"`
	Message        string    `bson:"message"`
	CreatedAt      time.Time `bson:"created_at"`
}

// New connects to uri, verifies the connection and makes sure the indexes
// exist.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(conversationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "members", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(messagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "_id", Value: 1}},
	})
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database. Used by tests.
func (s *MongoStore) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = store.NewID()
	}
	user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.db.Collection(usersCollection).InsertOne(ctx, userDoc{
		ID:        user.ID,
		FullName:  user.FullName,
		Email:     user.Email,
		Password:  user.Password,
		Token:     user.Token,
		CreatedAt: user.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("User already exist")
	}
	return err
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := s.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) UpdateUserToken(ctx context.Context, id, token string) error {
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"token": token}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("User not found")
	}
	return nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := s.db.Collection(usersCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, *doc.toModel())
	}
	return users, nil
}

func (s *MongoStore) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	if len(conversation.Members) != 2 {
		return fmt.Errorf("conversation needs 2 members, got %d", len(conversation.Members))
	}
	if conversation.ID == "" {
		conversation.ID = store.NewID()
	}
	conversation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.db.Collection(conversationsCollection).InsertOne(ctx, conversationDoc{
		ID:        conversation.ID,
		Members:   conversation.Members,
		CreatedAt: conversation.CreatedAt,
	})
	return err
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var doc conversationDoc
	err := s.db.Collection(conversationsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *MongoStore) ListConversationsByMember(ctx context.Context, userID string) ([]models.Conversation, error) {
	cursor, err := s.db.Collection(conversationsCollection).Find(ctx,
		bson.M{"members": bson.M{"$in": []string{userID}}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(docs))
	for _, doc := range docs {
		conversations = append(conversations, *doc.toModel())
	}
	return conversations, nil
}

func (s *MongoStore) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = store.NewID()
	}
	message.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := s.db.Collection(messagesCollection).InsertOne(ctx, messageDoc{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		Message:        message.Text,
		CreatedAt:      message.CreatedAt,
	})
	return err
}

func (s *MongoStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	cursor, err := s.db.Collection(messagesCollection).Find(ctx,
		bson.M{"conversationId": conversationID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, models.Message{
			ID:             doc.ID,
			ConversationID: doc.ConversationID,
			SenderID:       doc.SenderID,
			Text:           doc.Message,
			CreatedAt:      doc.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

func (d userDoc) toModel() *models.User {
	return &models.User{
		ID:        d.ID,
		FullName:  d.FullName,
		Email:     d.Email,
		Password:  d.Password,
		Token:     d.Token,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func (d conversationDoc) toModel() *models.Conversation {
	return &models.Conversation{
		ID:        d.ID,
		Members:   d.Members,
		CreatedAt: d.CreatedAt.UTC(),
	}
}
