// Package conversation persists the chat history as one serialized block
// under a fixed key, the way a browser keeps it in per-origin local storage.
package conversation

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/zhouzirui/calm-companion/backend/internal/logging"
	"github.com/zhouzirui/calm-companion/backend/internal/model/chat"
)

// HistoryKey is the storage key holding the serialized history.
const HistoryKey = "calm_companion_history_v1"

// ErrNotFound is returned by a Backend when the key holds no value.
var ErrNotFound = errors.New("key not found")

// Backend is a minimal key/value storage medium.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Store loads and saves the complete conversation history. Storage faults are
// logged and swallowed: Load degrades to an empty history, Save and Clear
// leave the caller unaffected.
type Store struct {
	backend Backend
	key     string
	logger  *zap.Logger
}

// NewStore wraps backend using HistoryKey.
func NewStore(backend Backend, logger *zap.Logger) *Store {
	return &Store{backend: backend, key: HistoryKey, logger: logging.OrNop(logger)}
}

// Load returns the persisted history, or an empty slice if it is absent,
// corrupt or unreadable.
func (s *Store) Load(ctx context.Context) []chat.Message {
	raw, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("failed to read history", zap.String("key", s.key), zap.Error(err))
		}
		return []chat.Message{}
	}
	if len(raw) == 0 {
		return []chat.Message{}
	}

	var history []chat.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		s.logger.Warn("discarding corrupt history", zap.String("key", s.key), zap.Error(err))
		return []chat.Message{}
	}
	if history == nil {
		return []chat.Message{}
	}
	return history
}

// Save overwrites the persisted history with the full sequence.
func (s *Store) Save(ctx context.Context, history []chat.Message) {
	if history == nil {
		history = []chat.Message{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		s.logger.Warn("failed to encode history", zap.Error(err))
		return
	}
	if err := s.backend.Put(ctx, s.key, raw); err != nil {
		s.logger.Warn("failed to persist history", zap.String("key", s.key), zap.Int("messages", len(history)), zap.Error(err))
	}
}

// Append loads the history, appends message, saves and returns the new history.
func (s *Store) Append(ctx context.Context, message chat.Message) []chat.Message {
	history := append(s.Load(ctx), message)
	s.Save(ctx, history)
	return history
}

// Clear removes the persisted history.
func (s *Store) Clear(ctx context.Context) {
	if err := s.backend.Delete(ctx, s.key); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("failed to clear history", zap.String("key", s.key), zap.Error(err))
	}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
