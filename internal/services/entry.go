package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mindsight/journal/internal/annotate"
	"github.com/mindsight/journal/internal/metrics"
	"github.com/mindsight/journal/internal/store"
	"github.com/mindsight/journal/types"
	"github.com/rs/zerolog"
)

// EntryRepository defines persistence operations for journal entries.
type EntryRepository interface {
	Create(ctx context.Context, entry types.Entry) (types.Entry, error)
	Get(ctx context.Context, id int) (types.Entry, error)
	ListByUser(ctx context.Context, userID int) ([]types.Entry, error)
	Delete(ctx context.Context, id int) error
}

// Annotator derives a mood and reflection for entry text. It never fails.
type Annotator interface {
	Analyze(ctx context.Context, text string) types.Annotation
}

// EntryService manages journal entries on behalf of an authenticated user.
type EntryService struct {
	repo      EntryRepository
	annotator Annotator
	events    EventPublisher
	logger    zerolog.Logger
}

func NewEntryService(repo EntryRepository, annotator Annotator, events EventPublisher, logger zerolog.Logger) *EntryService {
	return &EntryService{
		repo:      repo,
		annotator: annotator,
		events:    events,
		logger:    logger,
	}
}

// Add annotates text and stores it as a new entry owned by userID.
func (s *EntryService) Add(ctx context.Context, userID int, text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, requiredField("text", "Journal entry text is required.")
	}

	annotation := s.annotator.Analyze(ctx, text)
	if strings.TrimSpace(annotation.Mood) == "" {
		annotation.Mood = annotate.DefaultMood
	}
	if strings.TrimSpace(annotation.Reflection) == "" {
		annotation.Reflection = annotate.DefaultReflection
	}

	entry, err := s.repo.Create(ctx, types.Entry{
		UserID:     userID,
		Text:       text,
		Mood:       annotation.Mood,
		Reflection: annotation.Reflection,
	})
	if err != nil {
		return 0, fmt.Errorf("create entry: %w", err)
	}

	metrics.RecordEntryCreated()
	s.logger.Info().Int("user_id", userID).Int("entry_id", entry.ID).Str("mood", entry.Mood).Msg("entry saved")
	s.publish(ctx, types.Event{Type: types.EventEntryCreated, UserID: userID, EntryID: entry.ID, OccurredAt: entry.CreatedAt})
	return entry.ID, nil
}

// List returns the user's entries, newest first. It never returns nil.
func (s *EntryService) List(ctx context.Context, userID int) ([]types.Entry, error) {
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []types.Entry{}
	}
	return entries, nil
}

// Delete removes an entry owned by userID.
func (s *EntryService) Delete(ctx context.Context, userID, entryID int) error {
	entry, err := s.repo.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("load entry: %w", err)
	}
	if entry.UserID != userID {
		s.logger.Warn().Int("user_id", userID).Int("entry_id", entryID).Msg("delete of foreign entry refused")
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, entryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEntryNotFound
		}
		return fmt.Errorf("delete entry: %w", err)
	}

	metrics.RecordEntryDeleted()
	s.publish(ctx, types.Event{Type: types.EventEntryDeleted, UserID: userID, EntryID: entryID})
	return nil
}

func (s *EntryService) publish(ctx context.Context, event types.Event) {
	if s.events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	s.events.Publish(ctx, event)
}
