package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/temperature-predictor/internal/domain"
	"github.com/couchcryptid/temperature-predictor/internal/observability"
	"github.com/goccy/go-json"
)

// HistoryKey is the session key under which the conversion history is stored.
const HistoryKey = "history"

const idBytes = 32

type ctxKey struct{}

// ContextWithID returns a copy of ctx carrying the session id.
func ContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the session id set by Manager.Middleware.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// CookieOptions controls the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// Manager binds requests to sessions and reads and writes their history.
type Manager struct {
	store   Store
	cookie  CookieOptions
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewManager creates a Manager over store.
func NewManager(store Store, cookie CookieOptions, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if cookie.Name == "" {
		cookie.Name = "sessionid"
	}
	return &Manager{
		store:   store,
		cookie:  cookie,
		logger:  logger,
		metrics: metrics,
	}
}

// Middleware assigns every request a session id, issuing a new cookie when
// the client has none or sends a malformed one.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(m.cookie.Name); err == nil && validID(c.Value) {
			id = c.Value
		}
		if id == "" {
			var err error
			if id, err = newID(); err != nil {
				m.logger.Error("generate session id", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     m.cookie.Name,
			Value:    id,
			Path:     "/",
			MaxAge:   int(m.cookie.MaxAge.Seconds()),
			HttpOnly: true,
			Secure:   m.cookie.Secure || r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(ContextWithID(r.Context(), id)))
	})
}

// History loads the session history. Missing or unreadable data yields an
// empty history; the request is never failed over it.
func (m *Manager) History(ctx context.Context) domain.History {
	id, ok := IDFromContext(ctx)
	if !ok {
		return domain.History{}
	}

	raw, err := m.store.Get(ctx, id, HistoryKey)
	if errors.Is(err, ErrNotFound) {
		return domain.History{}
	}
	if err != nil {
		m.metrics.HistoryStoreErrors.WithLabelValues("load").Inc()
		m.logger.WarnContext(ctx, "load session history failed", "error", err)
		return domain.History{}
	}

	var h domain.History
	if err := json.Unmarshal(raw, &h); err != nil {
		m.metrics.HistoryStoreErrors.WithLabelValues("load").Inc()
		m.logger.WarnContext(ctx, "discarding corrupt session history", "error", err)
		return domain.History{}
	}
	if h == nil {
		return domain.History{}
	}
	return h.Bounded()
}

// SaveHistory writes h back to the session.
func (m *Manager) SaveHistory(ctx context.Context, h domain.History) error {
	id, ok := IDFromContext(ctx)
	if !ok {
		return errors.New("no session in context")
	}
	if h == nil {
		h = domain.History{}
	}
	data, err := json.Marshal(h.Bounded())
	if err != nil {
		return fmt.Errorf("encode session history: %w", err)
	}
	if err := m.store.Set(ctx, id, HistoryKey, data); err != nil {
		m.metrics.HistoryStoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("save session history: %w", err)
	}
	return nil
}

// CheckReadiness reports whether the underlying store is reachable.
func (m *Manager) CheckReadiness(ctx context.Context) error {
	return m.store.CheckReadiness(ctx)
}

func newID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func validID(s string) bool {
	if len(s) != idBytes*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
