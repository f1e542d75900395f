package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"salesdash/internal/dataset"
)

// CookieName carries the session id
const CookieName = "dash_session"

// Options configures the session manager
type Options struct {
	TTL          time.Duration
	MaxSessions  int
	SecureCookie bool
}

// Manager maps browser sessions to their uploaded dataset. Sessions without
// an upload read the bundled sample, parsed once and shared.
type Manager struct {
	store  *LRUCache[*dataset.Dataset]
	loader *dataset.Loader
	opts   Options
	logger *slog.Logger

	group    singleflight.Group
	mu       sync.RWMutex
	fallback *dataset.Dataset
}

// NewManager creates a manager. Zero options select a 30 minute TTL and
// 256 sessions.
func NewManager(loader *dataset.Loader, opts Options, logger *slog.Logger) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  NewLRUCache[*dataset.Dataset](opts.MaxSessions, opts.TTL),
		loader: loader,
		opts:   opts,
		logger: logger.With(slog.String("component", "session")),
	}
}

// ID returns the caller's session id, issuing a new cookie when the request
// has none or carries a malformed one.
func (m *Manager) ID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value
		}
	}

	id := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Dataset returns the session's dataset. fallback is true when the bundled
// sample is served because nothing was uploaded.
func (m *Manager) Dataset(ctx context.Context, id string) (ds *dataset.Dataset, fallback bool, err error) {
	if ds, ok := m.store.Get(id); ok {
		return ds, false, nil
	}
	ds, err = m.Fallback(ctx)
	return ds, true, err
}

// Put replaces the session's dataset
func (m *Manager) Put(id string, ds *dataset.Dataset) {
	m.store.Set(id, ds)
	m.logger.Debug("Session dataset stored",
		slog.String("session_id", id),
		slog.String("source", ds.Source),
		slog.String("fingerprint", ds.Fingerprint))
}

// Reset drops the upload so the session falls back to the sample
func (m *Manager) Reset(id string) {
	m.store.Delete(id)
}

// Len returns the number of sessions holding an upload
func (m *Manager) Len() int {
	return m.store.Size()
}

// Fallback loads the bundled sample once. Concurrent first callers share a
// single parse.
func (m *Manager) Fallback(ctx context.Context) (*dataset.Dataset, error) {
	m.mu.RLock()
	ds := m.fallback
	m.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	v, err, _ := m.group.Do("fallback", func() (interface{}, error) {
		m.mu.RLock()
		cached := m.fallback
		m.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		ds, err := m.loader.LoadFallback(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.fallback = ds
		m.mu.Unlock()
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dataset.Dataset), nil
}

// Sweep drops expired sessions and returns how many were removed
func (m *Manager) Sweep() int {
	n := m.store.CleanExpired()
	if n > 0 {
		m.logger.Info("Expired sessions removed", slog.Int("count", n))
	}
	return n
}
