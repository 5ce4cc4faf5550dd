package viewstore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/sparky-web/internal/domain/chat"
	"github.com/yanqian/sparky-web/internal/domain/summarizer"
	"github.com/yanqian/sparky-web/internal/domain/view"
	"github.com/yanqian/sparky-web/pkg/util"
)

type viewRecord struct {
	view      view.View
	chat      chat.State
	summary   summarizer.State
	expiresAt time.Time
}

// MemoryStore keeps view state in process memory. Used for single-instance
// deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	views    map[string]*viewRecord
	maxViews int
	now      func() time.Time
}

// MemoryOption customises a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxViews caps the number of live views. When full, creating a view
// evicts the one that expires first. Zero or less means no cap.
func WithMaxViews(n int) MemoryOption {
	return func(s *MemoryStore) { s.maxViews = n }
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{views: make(map[string]*viewRecord), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateView implements view.Store. Expired views are swept on every create.
func (s *MemoryStore) CreateView(_ context.Context, v view.View, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, rec := range s.views {
		if util.Expired(rec.expiresAt, now) {
			delete(s.views, id)
		}
	}
	if s.maxViews > 0 {
		for len(s.views) >= s.maxViews {
			s.evictOldestLocked()
		}
	}
	s.views[v.ID] = &viewRecord{view: v, expiresAt: util.ExpiresAt(now, ttl)}
	return nil
}

// evictOldestLocked drops the view closest to expiry. Views without a
// deadline go last.
func (s *MemoryStore) evictOldestLocked() {
	var (
		victim   string
		deadline time.Time
	)
	for id, rec := range s.views {
		switch {
		case victim == "":
		case deadline.IsZero() && !rec.expiresAt.IsZero():
		case !rec.expiresAt.IsZero() && rec.expiresAt.Before(deadline):
		default:
			continue
		}
		victim, deadline = id, rec.expiresAt
	}
	delete(s.views, victim)
}

// Len reports the number of stored views, expired ones included until the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}

// TouchView implements view.Store.
func (s *MemoryStore) TouchView(_ context.Context, id string, ttl time.Duration) (view.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.lookupLocked(id)
	if err != nil {
		return view.View{}, err
	}
	rec.expiresAt = util.ExpiresAt(s.now(), ttl)
	return rec.view, nil
}

// DeleteView implements view.Store.
func (s *MemoryStore) DeleteView(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.views[id]; !ok {
		return view.ErrNotFound
	}
	delete(s.views, id)
	return nil
}

// AppendMessage implements chat.StateStore.
func (s *MemoryStore) AppendMessage(_ context.Context, id string, msg chat.Message) error {
	return s.update(id, func(rec *viewRecord) {
		rec.chat.Transcript = append(rec.chat.Transcript, msg)
	})
}

// SetChatInput implements chat.StateStore.
func (s *MemoryStore) SetChatInput(_ context.Context, id, input string) error {
	return s.update(id, func(rec *viewRecord) { rec.chat.Input = input })
}

// SetChatLoading implements chat.StateStore.
func (s *MemoryStore) SetChatLoading(_ context.Context, id string, loading bool) error {
	return s.update(id, func(rec *viewRecord) { rec.chat.Loading = loading })
}

// ChatState implements chat.StateStore. The transcript is copied.
func (s *MemoryStore) ChatState(_ context.Context, id string) (chat.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.lookupLocked(id)
	if err != nil {
		return chat.State{}, err
	}
	state := rec.chat
	state.Transcript = make([]chat.Message, len(rec.chat.Transcript))
	copy(state.Transcript, rec.chat.Transcript)
	return state, nil
}

// SetSummaryInput implements summarizer.StateStore.
func (s *MemoryStore) SetSummaryInput(_ context.Context, id, input string) error {
	return s.update(id, func(rec *viewRecord) { rec.summary.Input = input })
}

// SetSummaryResult implements summarizer.StateStore.
func (s *MemoryStore) SetSummaryResult(_ context.Context, id, result string) error {
	return s.update(id, func(rec *viewRecord) { rec.summary.Result = result })
}

// SetSummaryLoading implements summarizer.StateStore.
func (s *MemoryStore) SetSummaryLoading(_ context.Context, id string, loading bool) error {
	return s.update(id, func(rec *viewRecord) { rec.summary.Loading = loading })
}

// SummaryState implements summarizer.StateStore.
func (s *MemoryStore) SummaryState(_ context.Context, id string) (summarizer.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.lookupLocked(id)
	if err != nil {
		return summarizer.State{}, err
	}
	return rec.summary, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) update(id string, fn func(*viewRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.lookupLocked(id)
	if err != nil {
		return err
	}
	fn(rec)
	return nil
}

// lookupLocked treats expired records as missing; they are removed on the next create.
func (s *MemoryStore) lookupLocked(id string) (*viewRecord, error) {
	rec, ok := s.views[id]
	if !ok || util.Expired(rec.expiresAt, s.now()) {
		return nil, view.ErrNotFound
	}
	return rec, nil
}

var _ Store = (*MemoryStore)(nil)
