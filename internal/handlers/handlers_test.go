package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pliu/chatterbox/internal/apperr"
	"github.com/pliu/chatterbox/internal/auth"
	"github.com/pliu/chatterbox/internal/models"
	"github.com/pliu/chatterbox/internal/services"
	"github.com/pliu/chatterbox/internal/store/sqlstore"
	"github.com/pliu/chatterbox/internal/ws"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	store  *sqlstore.SQLStore
	tokens *auth.Issuer
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewIssuer("test-secret", 84600*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	log := slog.New(slog.DiscardHandler)
	return &testServer{
		store:  store,
		tokens: tokens,
		router: NewRouter(RouterConfig{
			Auth:      services.NewAuthService(store, tokens, log),
			Messaging: services.NewMessagingService(store, store, store, nil, log),
			Tokens:    tokens,
			Log:       log,
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) register(t *testing.T, name, email string) string {
	t.Helper()
	rr := s.do(t, "POST", "/api/register", map[string]string{
		"fullName": name,
		"email":    email,
		"password": "password123",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("register %s: got %d %q", email, rr.Code, rr.Body.String())
	}
	user, err := s.store.GetUserByEmail(t.Context(), email)
	if err != nil {
		t.Fatal(err)
	}
	return user.ID
}

func TestWelcome(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, "GET", "/", nil)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if rr.Body.String() != "welcome" {
		t.Errorf("handler returned unexpected body: got %q", rr.Body.String())
	}
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"fullName": "Alice", "email": "alice@example.com", "password": "password123"}

	rr := s.do(t, "POST", "/api/register", body)
	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if rr.Body.String() != "User created successfully" {
		t.Errorf("handler returned unexpected body: got %q", rr.Body.String())
	}

	// Test duplicate user
	rr = s.do(t, "POST", "/api/register", body)
	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code for duplicate user: got %v want %v",
			status, http.StatusBadRequest)
	}
	if rr.Body.String() != "User already exist" {
		t.Errorf("handler returned unexpected body: got %q", rr.Body.String())
	}

	// Test missing field
	rr = s.do(t, "POST", "/api/register", map[string]string{"email": "bob@example.com", "password": "x"})
	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code for missing field: got %v want %v",
			status, http.StatusBadRequest)
	}
	if rr.Body.String() != "please all fields are required" {
		t.Errorf("handler returned unexpected body: got %q", rr.Body.String())
	}
}

func TestRegisterEmptyBody(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, "POST", "/api/register", nil)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "please all fields are required", rr.Body.String())
}

func TestRegisterMalformedBody(t *testing.T) {
	s := newTestServer(t)

	bodies := []string{
		"{not json",
		`{"fullName":"Alice","email":"alice@example.com","password":"x"}garbage`,
		`{"fullName":"Alice","email":"alice@example.com","password":"x"}}`,
		`{"fullName":"Alice","email":"alice@example.com","password":"x"} {}`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest("POST", "/api/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		s.router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code, body)
		require.Equal(t, "invalid request body", rr.Body.String(), body)
	}

	_, err := s.store.GetUserByEmail(t.Context(), "alice@example.com")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRegisterTrailingWhitespace(t *testing.T) {
	s := newTestServer(t)
	body := `{"fullName":"Alice","email":"alice@example.com","password":"x"}` + "\n\t "
	req := httptest.NewRequest("POST", "/api/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRegisterForm(t *testing.T) {
	s := newTestServer(t)
	form := url.Values{
		"fullName": {"Alice"},
		"email":    {"alice@example.com"},
		"password": {"password123"},
	}
	req := httptest.NewRequest("POST", "/api/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	user, err := s.store.GetUserByEmail(t.Context(), "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "Alice", user.FullName)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	userID := s.register(t, "Alice", "alice@example.com")

	rr := s.do(t, "POST", "/api/login", map[string]string{"email": "alice@example.com", "password": "password123"})
	if status := rr.Code; status != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var resp struct {
		User  models.Profile `json:"user"`
		Token string         `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, models.Profile{Email: "alice@example.com", FullName: "Alice"}, resp.User)
	require.NotContains(t, rr.Body.String(), "password")

	claims, err := s.tokens.Validate(resp.Token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)

	stored, err := s.store.GetUserByID(t.Context(), userID)
	require.NoError(t, err)
	require.Equal(t, resp.Token, stored.Token)
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Alice", "alice@example.com")

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"wrong password", map[string]string{"email": "alice@example.com", "password": "nope"}, "User email or password is incorrect"},
		{"unknown email", map[string]string{"email": "bob@example.com", "password": "password123"}, "User email or password is incorrect"},
		{"missing password", map[string]string{"email": "alice@example.com"}, "please all fields are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, "POST", "/api/login", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Equal(t, tt.want, rr.Body.String())
		})
	}
}

func TestConversations(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")

	rr := s.do(t, "POST", "/api/conversations", map[string]string{"senderId": alice, "receiverId": bob})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Conversation created successfully", rr.Body.String())

	rr = s.do(t, "GET", "/api/conversations/"+bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var views []models.ConversationView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Equal(t, models.Profile{Email: "alice@example.com", FullName: "Alice"}, views[0].User)
	require.NotEmpty(t, views[0].ConversationID)

	rr = s.do(t, "GET", "/api/conversations/nobody", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())
}

func TestCreateConversationMissingMember(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, "POST", "/api/conversations", map[string]string{"senderId": "u1"})

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConversationWithUnknownMember(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")

	rr := s.do(t, "POST", "/api/conversations", map[string]string{"senderId": alice, "receiverId": "ghost"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, "GET", "/api/conversations/"+alice, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "User not found", rr.Body.String())
}

func TestSendMessage(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")

	// No conversation yet, one is created from receiverId.
	rr := s.do(t, "POST", "/api/message", map[string]string{"senderId": alice, "receiverId": bob, "message": "hi"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Message sent successfully", rr.Body.String())

	conversations, err := s.store.ListConversationsByMember(t.Context(), alice)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	conversationID := conversations[0].ID

	rr = s.do(t, "POST", "/api/message", map[string]string{"conversationId": conversationID, "senderId": bob, "message": "hello"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, "GET", "/api/message/"+conversationID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var views []models.MessageView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Equal(t, []models.MessageView{
		{User: models.Profile{Email: "alice@example.com", FullName: "Alice"}, Message: "hi"},
		{User: models.Profile{Email: "bob@example.com", FullName: "Bob"}, Message: "hello"},
	}, views)
}

func TestSendMessageFailures(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing message", map[string]string{"senderId": "u1", "conversationId": "c1"}, "Please fill all required fields"},
		{"missing sender", map[string]string{"message": "hi", "conversationId": "c1"}, "Please fill all required fields"},
		{"no target", map[string]string{"senderId": "u1", "message": "hi"}, "please fill all required fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, "POST", "/api/message", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Equal(t, tt.want, rr.Body.String())
		})
	}
}

func TestGetMessagesEmpty(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/message/", "/api/message/unknown"} {
		rr := s.do(t, "GET", path, nil)
		require.Equal(t, http.StatusOK, rr.Code, path)
		require.JSONEq(t, `[]`, rr.Body.String(), path)
	}
}

func TestGetUsers(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, "GET", "/api/users", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())

	alice := s.register(t, "Alice", "alice@example.com")
	bob := s.register(t, "Bob", "bob@example.com")

	rr = s.do(t, "GET", "/api/users", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var users []models.UserView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	require.Equal(t, []models.UserView{
		{User: models.Profile{Email: "alice@example.com", FullName: "Alice"}, UserID: alice},
		{User: models.Profile{Email: "bob@example.com", FullName: "Bob"}, UserID: bob},
	}, users)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/api/register"},
		{"PUT", "/api/register"},
		{"GET", "/api/login"},
		{"GET", "/api/conversations"},
		{"POST", "/api/conversations/u1"},
		{"PUT", "/api/message"},
		{"POST", "/api/message/"},
		{"DELETE", "/api/message/c1"},
		{"POST", "/api/users"},
		{"POST", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := s.do(t, tt.method, tt.path, nil)
			if rr.Code != http.StatusMethodNotAllowed {
				t.Errorf("handler returned wrong status code: got %v want %v",
					rr.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, "GET", "/api/nope", nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("OPTIONS", "/api/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketRequiresToken(t *testing.T) {
	store, err := sqlstore.New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	tokens, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	log := slog.New(slog.DiscardHandler)
	router := NewRouter(RouterConfig{
		Auth:      services.NewAuthService(store, tokens, log),
		Messaging: services.NewMessagingService(store, store, store, nil, log),
		Tokens:    tokens,
		Hub:       ws.NewHub(log),
		Log:       log,
	})

	for _, path := range []string{"/ws", "/ws?token=garbage"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestWebSocketRouteAbsentWithoutHub(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, "GET", "/ws", nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
}
