package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pliu/chatterbox/internal/apperr"
	"github.com/pliu/chatterbox/internal/auth"
	"github.com/pliu/chatterbox/internal/models"
	"github.com/pliu/chatterbox/internal/store"
)

const (
	msgAllFieldsRequired  = "please all fields are required"
	msgUserExists         = "User already exist"
	msgInvalidCredentials = "User email or password is incorrect"
)

type RegisterRequest struct {
	FullName string `json:"fullName" schema:"fullName" validate:"required"`
	Email    string `json:"email" schema:"email" validate:"required"`
	Password string `json:"password" schema:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" schema:"email" validate:"required"`
	Password string `json:"password" schema:"password" validate:"required"`
}

type AuthService struct {
	users  store.UserStore
	tokens *auth.Issuer
	log    *slog.Logger
}

func NewAuthService(users store.UserStore, tokens *auth.Issuer, log *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) error {
	if err := requireFields(req, msgAllFieldsRequired); err != nil {
		return err
	}

	_, err := s.users.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return apperr.Conflict(msgUserExists)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("lookup user: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	user := &models.User{FullName: req.FullName, Email: req.Email, Password: hash}
	// The store enforces uniqueness too, for registrations racing past the
	// lookup above.
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return apperr.Conflict(msgUserExists)
		}
		return fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", "user_id", user.ID)
	return nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (models.LoginResponse, error) {
	if err := requireFields(req, msgAllFieldsRequired); err != nil {
		return models.LoginResponse{}, err
	}

	// Unknown email and wrong password must be indistinguishable.
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.LoginResponse{}, apperr.Auth(msgInvalidCredentials)
	}
	if err != nil {
		return models.LoginResponse{}, fmt.Errorf("lookup user: %w", err)
	}

	match, err := auth.ComparePassword(req.Password, user.Password)
	if err != nil {
		s.log.Warn("stored password hash is unreadable", "user_id", user.ID, "error", err)
	}
	if err != nil || !match {
		return models.LoginResponse{}, apperr.Auth(msgInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return models.LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}
	if err := s.users.UpdateUserToken(ctx, user.ID, token); err != nil {
		return models.LoginResponse{}, fmt.Errorf("store token: %w", err)
	}

	return models.LoginResponse{User: user.Profile(), Token: token}, nil
}
