// Package session buffers field edits per draft and saves them in the
// background after a quiet period.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"leadtriage/internal/domain"
)

// DefaultDelay is the quiet period after the last edit before a save.
const DefaultDelay = 800 * time.Millisecond

// Store is the authoritative draft storage.
type Store interface {
	GetDraft(ctx context.Context, id string) (domain.LeadDraft, error)
	SaveDraftPatch(ctx context.Context, id string, patch domain.DraftPatch) error
}

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	Delay  time.Duration
	Clock  Clock
	Logger *slog.Logger
	// OnFlush is called after every save attempt with the number of fields
	// sent and the outcome.
	OnFlush func(ctx context.Context, fields int, err error)
}

// Manager owns one Session per draft.
type Manager struct {
	store   Store
	clock   Clock
	delay   time.Duration
	logger  *slog.Logger
	onFlush func(ctx context.Context, fields int, err error)

	mu       sync.Mutex
	sessions map[string]*Session
}

// Session holds the local record and the fields not yet saved for a draft.
type Session struct {
	id string

	// flushMu serialises saves for this draft.
	flushMu sync.Mutex

	mu      sync.Mutex
	record  domain.LeadDraft
	patch   domain.DraftPatch
	timer   Timer
	seq     uint64
	lastErr error
}

// Snapshot is a copy of a session's state. Record is the local view as of
// the last edit or save; readers that need the scorer's latest output
// re-read the store and lay Patch over it.
type Snapshot struct {
	Record    domain.LeadDraft    `json:"record"`
	Patch     domain.DraftPatch   `json:"-"`
	Pending   []domain.DraftField `json:"pending"`
	LastError string              `json:"last_error,omitempty"`
}

func NewManager(store Store, opts Options) *Manager {
	m := &Manager{
		store:    store,
		clock:    opts.Clock,
		delay:    opts.Delay,
		logger:   opts.Logger,
		onFlush:  opts.OnFlush,
		sessions: map[string]*Session{},
	}
	if m.clock == nil {
		m.clock = RealClock()
	}
	if m.delay <= 0 {
		m.delay = DefaultDelay
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

func (m *Manager) lookup(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// open returns the session for id, reading the draft from the store the
// first time it is touched.
func (m *Manager) open(ctx context.Context, id string) (*Session, error) {
	if s := m.lookup(id); s != nil {
		return s, nil
	}
	d, err := m.store.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := &Session{id: id, record: d, patch: domain.DraftPatch{}}
	m.sessions[id] = s
	return s, nil
}

// SetField applies an edit to the local record immediately and schedules a
// save. Later edits to the same field replace earlier ones; every edit
// restarts the draft's timer.
func (m *Manager) SetField(ctx context.Context, id, field, raw string) (domain.LeadDraft, error) {
	return m.SetFields(ctx, id, map[string]string{field: raw})
}

// SetFields applies a batch of edits as one. Every field is parsed and
// coerced first; if any is invalid nothing is staged.
func (m *Manager) SetFields(ctx context.Context, id string, raw map[string]string) (domain.LeadDraft, error) {
	staged := make(domain.DraftPatch, len(raw))
	for _, name := range slices.Sorted(maps.Keys(raw)) {
		f, err := domain.ParseDraftField(name)
		if err != nil {
			return domain.LeadDraft{}, err
		}
		value, err := domain.CoerceField(f, raw[name])
		if err != nil {
			return domain.LeadDraft{}, err
		}
		staged[f] = value
	}
	s, err := m.open(ctx, id)
	if err != nil {
		return domain.LeadDraft{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.record.Editable() {
		return s.record, fmt.Errorf("draft %s is %s: %w", id, s.record.Status, domain.ErrNotEditable)
	}
	if len(staged) == 0 {
		return s.record, nil
	}
	for f, value := range staged {
		s.record.Apply(f, value)
		s.patch[f] = value
	}
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
	}
	seq := s.seq
	s.timer = m.clock.AfterFunc(m.delay, func() { m.fire(s, seq) })
	return s.record, nil
}

func (m *Manager) fire(s *Session, seq uint64) {
	s.mu.Lock()
	stale := s.seq != seq
	s.mu.Unlock()
	if stale {
		return
	}
	_ = m.flush(context.Background(), s)
}

// flush sends the pending patch. The patch is swapped for an empty one
// before the call so edits made during the save start a new patch. On
// failure the sent values go back underneath any newer edits.
func (m *Manager) flush(ctx context.Context, s *Session) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	patch := s.patch
	if len(patch) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.patch = domain.DraftPatch{}
	s.mu.Unlock()

	err := m.store.SaveDraftPatch(ctx, s.id, patch)
	if m.onFlush != nil {
		m.onFlush(ctx, len(patch), err)
	}
	if err != nil {
		s.mu.Lock()
		for f, v := range patch {
			if _, newer := s.patch[f]; !newer {
				s.patch[f] = v
			}
		}
		s.lastErr = err
		s.mu.Unlock()
		m.logger.Error("draft save failed", "draft_id", s.id, "fields", len(patch), "err", err)
		return err
	}

	fresh, gerr := m.store.GetDraft(ctx, s.id)
	s.mu.Lock()
	s.lastErr = nil
	if gerr == nil {
		fresh.ApplyPatch(s.patch)
		s.record = fresh
	}
	s.mu.Unlock()
	if gerr != nil {
		m.logger.Warn("draft reload after save failed", "draft_id", s.id, "err", gerr)
	}
	m.logger.Debug("draft saved", "draft_id", s.id, "fields", len(patch))
	return nil
}

// Flush saves the pending edits of a draft now. It is also the retry path
// after a failed save. Drafts without a session have nothing to flush.
func (m *Manager) Flush(ctx context.Context, id string) error {
	s := m.lookup(id)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return m.flush(ctx, s)
}

// FlushAll flushes the given drafts and stops at the first failure.
func (m *Manager) FlushAll(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := m.Flush(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns the session state for id.
func (m *Manager) Snapshot(id string) (Snapshot, bool) {
	s := m.lookup(id)
	if s == nil {
		return Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Record: s.record, Patch: maps.Clone(s.patch), Pending: s.patch.Fields()}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap, true
}

// Forget drops sessions without saving, after their drafts were committed
// or deleted.
func (m *Manager) Forget(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		s, ok := m.sessions[id]
		if !ok {
			continue
		}
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
		}
		s.seq++
		s.mu.Unlock()
		delete(m.sessions, id)
	}
}

// Close stops all timers and flushes every session.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	var errs []error
	for _, id := range ids {
		if err := m.Flush(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("flush draft %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
