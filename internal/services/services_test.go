package services

import (
	"context"
	"sync"
	"testing"

	"github.com/mindsight/journal/internal/store/memory"
	"github.com/mindsight/journal/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type stubAnnotator struct {
	mu         sync.Mutex
	annotation types.Annotation
	calls      []string
}

func (s *stubAnnotator) Analyze(_ context.Context, text string) types.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	return s.annotation
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event types.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) eventTypes() []types.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.EventType, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type fixture struct {
	users     *memory.UserRepository
	entries   *memory.EntryRepository
	annotator *stubAnnotator
	events    *recordingPublisher
	userSvc   *UserService
	entrySvc  *EntryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:     memory.NewUserRepository(),
		entries:   memory.NewEntryRepository(),
		annotator: &stubAnnotator{annotation: types.Annotation{Mood: "happy", Reflection: "Nice!"}},
		events:    &recordingPublisher{},
	}
	f.userSvc = NewUserService(f.users, f.events, zerolog.Nop())
	f.userSvc.hashCost = bcrypt.MinCost
	f.entrySvc = NewEntryService(f.entries, f.annotator, f.events, zerolog.Nop())
	return f
}

func (f *fixture) register(t *testing.T, username, password string) int {
	t.Helper()
	id, err := f.userSvc.Register(context.Background(), username, password)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return id
}
