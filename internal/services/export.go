package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mindsight/journal/internal/storage"
	"github.com/mindsight/journal/types"
	"github.com/rs/zerolog"
)

const exportContentType = "application/json"

// ObjectStore stores and reads objects by key. Get returns
// storage.ErrObjectNotFound for missing keys.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ExportService writes a user's journal to object storage.
type ExportService struct {
	users   UserRepository
	entries EntryRepository
	objects ObjectStore
	logger  zerolog.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService. A nil objects writer disables
// exports.
func NewExportService(users UserRepository, entries EntryRepository, objects ObjectStore, logger zerolog.Logger) *ExportService {
	return &ExportService{
		users:   users,
		entries: entries,
		objects: objects,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether an object storage backend is configured.
func (s *ExportService) Enabled() bool {
	return s != nil && s.objects != nil
}

// Export writes all of the user's entries as JSON and returns the object key.
func (s *ExportService) Export(ctx context.Context, userID int) (string, error) {
	if !s.Enabled() {
		return "", ErrExportDisabled
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	entries, err := s.entries.ListByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []types.Entry{}
	}

	exportedAt := s.now()
	payload, err := json.MarshalIndent(types.JournalExport{
		Username:   user.Username,
		ExportedAt: exportedAt,
		Entries:    entries,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}

	key := exportKey(user.Username, fmt.Sprintf("%d.json", exportedAt.UnixNano()))
	if err := s.objects.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), exportContentType); err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}

	s.logger.Info().Int("user_id", userID).Str("key", key).Int("entries", len(entries)).Msg("journal exported")
	return key, nil
}

// Open returns a reader for one of the user's exports. name is the final key
// segment returned by Export; anything else is ErrExportNotFound.
func (s *ExportService) Open(ctx context.Context, userID int, name string) (io.ReadCloser, error) {
	if !s.Enabled() {
		return nil, ErrExportDisabled
	}
	if !validExportName(name) {
		return nil, ErrExportNotFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	r, err := s.objects.Get(ctx, exportKey(user.Username, name))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrExportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	return r, nil
}

// ExportName returns the final segment of an export key.
func ExportName(key string) string {
	return path.Base(key)
}

func exportKey(username, name string) string {
	return "exports/" + username + "/" + name
}

func validExportName(name string) bool {
	stamp, ok := strings.CutSuffix(name, ".json")
	if !ok || stamp == "" {
		return false
	}
	_, err := strconv.ParseUint(stamp, 10, 64)
	return err == nil
}
