// Package convo keeps per-conversation turn history. Each conversation has its
// own lock, so activity in one conversation never waits on another.
package convo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// ErrInvalidRole is returned when appending a turn with an unknown role.
var ErrInvalidRole = errors.New("invalid turn role")

// ErrEmptyID is returned for a blank conversation id.
var ErrEmptyID = errors.New("conversation id is empty")

// Journal persists turns outside the process. Implementations must be safe
// for concurrent use across different conversation ids.
type Journal interface {
	AppendTurn(ctx context.Context, conversationID string, turn models.Turn) error
	LoadTurns(ctx context.Context, conversationID string) ([]models.Turn, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	ConversationIDs(ctx context.Context) ([]string, error)
}

// Options configures a Store.
type Options struct {
	// MaxTurns caps turns kept per conversation; 0 keeps everything.
	MaxTurns int
	// Journal, when set, receives every appended turn and rehydrates
	// conversations on first reference.
	Journal Journal
	Logger  zerolog.Logger
}

// Store is an in-memory conversation store.
type Store struct {
	mu    sync.Mutex
	convs map[string]*entry

	maxTurns int
	journal  Journal
	logger   zerolog.Logger
}

type entry struct {
	mu      sync.Mutex
	turns   []models.Turn
	loaded  bool
	removed bool
}

// New creates a Store.
func New(opts Options) *Store {
	return &Store{
		convs:    make(map[string]*entry),
		maxTurns: opts.MaxTurns,
		journal:  opts.Journal,
		logger:   opts.Logger,
	}
}

// GetOrCreate returns the conversation with the given id, creating an empty
// one if it does not exist.
func (s *Store) GetOrCreate(id string) (models.Conversation, error) {
	if id == "" {
		return models.Conversation{}, ErrEmptyID
	}
	for {
		e := s.entry(id)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		err := s.load(id, e)
		conv := models.Conversation{ID: id, Turns: copyTurns(e.turns)}
		e.mu.Unlock()
		return conv, err
	}
}

// Append adds a turn to the end of a conversation. Turns appended to the same
// id are kept in arrival order.
func (s *Store) Append(id string, turn models.Turn) error {
	if id == "" {
		return ErrEmptyID
	}
	if !turn.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, turn.Role)
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	for {
		e := s.entry(id)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		err := s.append(id, e, turn)
		e.mu.Unlock()
		return err
	}
}

func (s *Store) append(id string, e *entry, turn models.Turn) error {
	if err := s.load(id, e); err != nil {
		return err
	}
	if s.journal != nil {
		if err := s.journal.AppendTurn(context.Background(), id, turn); err != nil {
			return fmt.Errorf("journal turn: %w", err)
		}
	}
	e.turns = append(e.turns, turn)
	e.turns = s.evict(e.turns)
	return nil
}

// Snapshot returns a copy of the last n turns of a conversation, or all of
// them when n <= 0. An unknown id yields nil.
func (s *Store) Snapshot(id string, n int) []models.Turn {
	e := s.resident(id)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil
	}
	if err := s.load(id, e); err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", id).Msg("failed to rehydrate conversation")
		return nil
	}
	turns := e.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return copyTurns(turns)
}

// Remove deletes a conversation. It reports whether the conversation was
// held in memory or in the journal.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	e, ok := s.convs[id]
	delete(s.convs, id)
	s.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.removed = true
		e.turns = nil
		e.mu.Unlock()
	}
	if s.journal != nil {
		if !ok {
			turns, err := s.journal.LoadTurns(context.Background(), id)
			if err != nil {
				s.logger.Warn().Err(err).Str("conversation_id", id).Msg("failed to load journaled conversation")
			}
			ok = len(turns) > 0
		}
		if err := s.journal.DeleteConversation(context.Background(), id); err != nil {
			s.logger.Warn().Err(err).Str("conversation_id", id).Msg("failed to delete journaled conversation")
		}
	}
	return ok
}

// IDs returns the ids of conversations held in memory or in the journal,
// sorted.
func (s *Store) IDs() []string {
	seen := make(map[string]bool)
	if s.journal != nil {
		journaled, err := s.journal.ConversationIDs(context.Background())
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to list journaled conversations")
		}
		for _, id := range journaled {
			seen[id] = true
		}
	}

	s.mu.Lock()
	for id := range s.convs {
		seen[id] = true
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// resident returns the in-memory entry for id. A conversation only present
// in the journal gets an entry on first reference; nil means no turns exist.
func (s *Store) resident(id string) *entry {
	s.mu.Lock()
	e, ok := s.convs[id]
	s.mu.Unlock()
	if ok {
		return e
	}
	if s.journal == nil {
		return nil
	}
	turns, err := s.journal.LoadTurns(context.Background(), id)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", id).Msg("failed to load journaled conversation")
		return nil
	}
	if len(turns) == 0 {
		return nil
	}
	return s.entry(id)
}

// entry returns the entry for id, creating it under the store lock.
func (s *Store) entry(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.convs[id]
	if !ok {
		e = &entry{loaded: s.journal == nil}
		s.convs[id] = e
	}
	return e
}

// load must be called with e.mu held.
func (s *Store) load(id string, e *entry) error {
	if e.loaded {
		return nil
	}
	turns, err := s.journal.LoadTurns(context.Background(), id)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", id, err)
	}
	e.turns = s.evict(append(turns, e.turns...))
	e.loaded = true
	if len(turns) > 0 {
		s.logger.Debug().Str("conversation_id", id).Int("turns", len(turns)).Msg("rehydrated conversation")
	}
	return nil
}

func (s *Store) evict(turns []models.Turn) []models.Turn {
	if s.maxTurns <= 0 || len(turns) <= s.maxTurns {
		return turns
	}
	drop := len(turns) - s.maxTurns
	return append(turns[:0:0], turns[drop:]...)
}

func copyTurns(turns []models.Turn) []models.Turn {
	if len(turns) == 0 {
		return nil
	}
	return append([]models.Turn(nil), turns...)
}
