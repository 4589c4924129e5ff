package models

import "time"

type User struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the part of a user record that other users are allowed to see.
type Profile struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func (u User) Profile() Profile {
	return Profile{Email: u.Email, FullName: u.FullName}
}

type Conversation struct {
	ID        string    `json:"id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// OtherMember returns the member that is not userID. A conversation a user
// opened with themselves resolves to that same user.
func (c Conversation) OtherMember(userID string) string {
	for _, m := range c.Members {
		if m != userID {
			return m
		}
	}
	return userID
}

func (c Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

type LoginResponse struct {
	User  Profile `json:"user"`
	Token string  `json:"token"`
}

type ConversationView struct {
	User           Profile `json:"user"`
	ConversationID string  `json:"conversationId"`
}

type MessageView struct {
	User    Profile `json:"user"`
	Message string  `json:"message"`
}

type UserView struct {
	User   Profile `json:"user"`
	UserID string  `json:"userId"`
}

const EventTypeMessage = "message"

// MessageEvent is pushed to connected members of a conversation when a
// message is stored.
type MessageEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
	Members        []string  `json:"-"`
}
