package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mindsight/journal/internal/store"
	"github.com/mindsight/journal/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// EventPublisher receives domain events. Implementations must not block on
// broker failures.
type EventPublisher interface {
	Publish(ctx context.Context, event types.Event)
}

// UserService registers and authenticates users.
type UserService struct {
	repo     UserRepository
	events   EventPublisher
	logger   zerolog.Logger
	hashCost int
}

func NewUserService(repo UserRepository, events EventPublisher, logger zerolog.Logger) *UserService {
	return &UserService{
		repo:     repo,
		events:   events,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register validates the credentials, hashes the password and stores a new
// user, returning its ID.
func (s *UserService) Register(ctx context.Context, username, password string) (int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, requiredField("username", "Username is required.")
	}
	if password == "" {
		return 0, requiredField("password", "Password is required.")
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return 0, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("check username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return 0, ErrUsernameTaken
		}
		return 0, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Int("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	s.publish(ctx, types.Event{Type: types.EventUserRegistered, UserID: user.ID, OccurredAt: user.CreatedAt})
	return user.ID, nil
}

// Authenticate returns the user matching the credentials. The caller is
// responsible for binding the user to a session.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrIncorrectUsername
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrIncorrectPassword
	}

	return user, nil
}

// GetByID resolves a session's user ID to the full record.
func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) publish(ctx context.Context, event types.Event) {
	if s.events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	s.events.Publish(ctx, event)
}
