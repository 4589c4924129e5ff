package handlers

import (
	"log/slog"
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pliu/chatterbox/internal/middleware"
	"github.com/pliu/chatterbox/internal/services"
	"github.com/pliu/chatterbox/internal/ws"
)

type RouterConfig struct {
	Auth      *services.AuthService
	Messaging *services.MessagingService
	Tokens    middleware.TokenValidator
	Hub       *ws.Hub
	Log       *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := &AuthHandler{Auth: cfg.Auth, Log: cfg.Log}
	chatHandler := &ChatHandler{Messaging: cfg.Messaging, Log: cfg.Log}

	r := mux.NewRouter()
	r.Use(middleware.Logging(cfg.Log))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "welcome")
	}).Methods("GET")

	// API Endpoints. Registered with full paths on the root router: routes
	// inside a PathPrefix subrouter answer 404 instead of 405 on a method
	// mismatch unless they are the last one registered.
	r.HandleFunc("/api/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/conversations", chatHandler.CreateConversation).Methods("POST")
	r.HandleFunc("/api/conversations/{userId}", chatHandler.GetConversations).Methods("GET")
	r.HandleFunc("/api/message", chatHandler.SendMessage).Methods("POST")
	r.HandleFunc("/api/message/", chatHandler.GetMessages).Methods("GET")
	r.HandleFunc("/api/message/{conversationId}", chatHandler.GetMessages).Methods("GET")
	r.HandleFunc("/api/users", chatHandler.GetUsers).Methods("GET")

	// WebSocket Endpoint
	if cfg.Hub != nil {
		r.Handle("/ws", middleware.RequireToken(cfg.Tokens)(
			ws.Handler(cfg.Hub, func(r *http.Request) (string, bool) {
				return middleware.UserID(r.Context())
			}, cfg.Log),
		)).Methods("GET")
	}

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(recoveryLogger{cfg.Log}),
	)
	return recovery(cors(r))
}

// recoveryLogger adapts slog to the gorilla RecoveryHandlerLogger.
type recoveryLogger struct {
	log *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("panic serving request", "panic", v)
}
