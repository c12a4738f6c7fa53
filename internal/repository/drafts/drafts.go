// Package drafts keeps the news forms that are open in a browser, keyed by
// the draft cookie, and tears down the ones left idle.
package drafts

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/debemdeboas/newsdesk/internal/cache"
	"github.com/debemdeboas/newsdesk/internal/form"
	"github.com/debemdeboas/newsdesk/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var draftsLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	draftsLogger = l
}

type ID string

// Draft is one mounted form and the user editing it.
type Draft struct {
	ID    ID
	Owner model.UserID
	Form  *form.Form

	lastSeen atomic.Int64
}

func (d *Draft) touch(now time.Time) {
	d.lastSeen.Store(now.UnixNano())
}

func (d *Draft) LastSeen() time.Time {
	return time.Unix(0, d.lastSeen.Load())
}

type Repository interface {
	Create(owner model.UserID, factory func(ID) *form.Form) *Draft
	Get(id ID) (*Draft, error)
	Delete(id ID) bool
}

type MemoryRepository struct { // implements Repository
	drafts  *cache.Cache[ID, *Draft]
	idleTTL time.Duration
	now     func() time.Time

	deleteNotifier func(ID)
}

func NewMemoryRepository(idleTTL time.Duration) *MemoryRepository {
	return &MemoryRepository{
		drafts:  cache.NewCache[ID, *Draft](),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// SetDeleteNotifier sets a function called after a draft is torn down.
func (m *MemoryRepository) SetDeleteNotifier(notifier func(ID)) {
	m.deleteNotifier = notifier
}

// Create builds a form through factory, mounts it and registers it under
// a fresh id.
func (m *MemoryRepository) Create(owner model.UserID, factory func(ID) *form.Form) *Draft {
	id := ID(uuid.New().String())
	d := &Draft{ID: id, Owner: owner, Form: factory(id)}
	d.Form.Mount()
	d.touch(m.now())

	m.drafts.Set(id, d)
	draftsLogger.Debug().Str("draft_id", string(id)).Msg("Draft created")
	return d
}

func (m *MemoryRepository) Get(id ID) (*Draft, error) {
	d, ok := m.drafts.Get(id)
	if !ok {
		return nil, fmt.Errorf("draft not found: %s", id)
	}
	d.touch(m.now())
	return d, nil
}

// Delete unmounts and forgets the draft. It reports false if the draft was
// already gone.
func (m *MemoryRepository) Delete(id ID) bool {
	d, ok := m.drafts.Take(id)
	if !ok {
		return false
	}
	d.Form.Unmount()
	if m.deleteNotifier != nil {
		m.deleteNotifier(id)
	}
	draftsLogger.Debug().Str("draft_id", string(id)).Msg("Draft deleted")
	return true
}

// Sweep tears down drafts idle for longer than the idle TTL. Drafts with a
// submission in flight are left alone.
func (m *MemoryRepository) Sweep(now time.Time) int {
	swept := 0
	for _, id := range m.drafts.Keys() {
		d, ok := m.drafts.Get(id)
		if !ok || d.Form.Submitting() || now.Sub(d.LastSeen()) <= m.idleTTL {
			continue
		}
		if m.Delete(id) {
			swept++
		}
	}
	if swept > 0 {
		draftsLogger.Info().Int("swept", swept).Int("live", m.drafts.Len()).Msg("Idle drafts removed")
	}
	return swept
}

// Run sweeps every interval until ctx is done, then tears down every
// remaining draft.
func (m *MemoryRepository) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// Close tears down every draft.
func (m *MemoryRepository) Close() {
	for _, id := range m.drafts.Keys() {
		m.Delete(id)
	}
}

func (m *MemoryRepository) Len() int {
	return m.drafts.Len()
}
