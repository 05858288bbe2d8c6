package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mindsight/journal/internal/store"
	"github.com/mindsight/journal/types"
	"github.com/rs/zerolog"
)

func TestRegisterValidatesFields(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		username string
		password string
		field    string
		message  string
	}{
		{"", "test", "username", "Username is required."},
		{"   ", "test", "username", "Username is required."},
		{"test", "", "password", "Password is required."},
	}

	for _, tc := range cases {
		_, err := f.userSvc.Register(context.Background(), tc.username, tc.password)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Register(%q, %q): expected ValidationError, got %v", tc.username, tc.password, err)
		}
		if verr.Field != tc.field || verr.Message != tc.message {
			t.Fatalf("unexpected validation error: %+v", verr)
		}
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "pw1")

	for i := 0; i < 2; i++ {
		if _, err := f.userSvc.Register(context.Background(), "alice", "other"); !errors.Is(err, ErrUsernameTaken) {
			t.Fatalf("attempt %d: expected ErrUsernameTaken, got %v", i+1, err)
		}
	}

	// Usernames are case-sensitive.
	f.register(t, "Alice", "pw1")
}

type racingUserRepo struct {
	UserRepository
}

func (racingUserRepo) GetByUsername(context.Context, string) (types.User, error) {
	return types.User{}, store.ErrNotFound
}

func (racingUserRepo) Create(context.Context, types.User) (types.User, error) {
	return types.User{}, store.ErrConflict
}

func TestRegisterMapsStoreConflict(t *testing.T) {
	svc := NewUserService(racingUserRepo{}, nil, zerolog.Nop())
	if _, err := svc.Register(context.Background(), "alice", "pw"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, "alice", "pw1")

	user, err := f.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.PasswordHash == "" || user.PasswordHash == "pw1" {
		t.Fatalf("expected hashed password, got %q", user.PasswordHash)
	}
	if got := f.events.eventTypes(); len(got) != 1 || got[0] != types.EventUserRegistered {
		t.Fatalf("expected user.registered event, got %v", got)
	}
}

func TestRegisterThenAuthenticate(t *testing.T) {
	f := newFixture(t)

	pairs := [][2]string{{"alice", "pw1"}, {"bob", "correct horse battery staple"}, {"ünïcode", "päss"}}
	for _, pair := range pairs {
		id := f.register(t, pair[0], pair[1])
		user, err := f.userSvc.Authenticate(context.Background(), pair[0], pair[1])
		if err != nil {
			t.Fatalf("authenticate %s: %v", pair[0], err)
		}
		if user.ID != id {
			t.Fatalf("expected user %d, got %d", id, user.ID)
		}
	}
}

func TestAuthenticateErrors(t *testing.T) {
	f := newFixture(t)
	f.register(t, "testuser", "testpass")

	if _, err := f.userSvc.Authenticate(context.Background(), "wronguser", "testpass"); !errors.Is(err, ErrIncorrectUsername) {
		t.Fatalf("expected ErrIncorrectUsername, got %v", err)
	}
	if _, err := f.userSvc.Authenticate(context.Background(), "testuser", "wrongpass"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("expected ErrIncorrectPassword, got %v", err)
	}
}
