package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"screenscape/discoveryservice/internal/domain"
	"screenscape/discoveryservice/internal/metrics"
)

const (
	DefaultDailyLimit = 500
	releaseTimeout    = 3 * time.Second
)

var ErrQuotaExceeded = errors.New("daily quota exceeded")

type ExceededError struct {
	Limit     int
	ResetTime time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("daily quota of %d requests exceeded, resets at %s", e.Limit, e.ResetTime.Format(time.RFC3339))
}

func (e *ExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Gate enforces a global daily limit on text generation calls. The window
// closes at the end of the local day and is reset lazily on the next read
// or write.
type Gate struct {
	store  Store
	limit  int
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	shadow State
}

type Option func(*Gate)

func WithLimit(limit int) Option {
	return func(g *Gate) {
		if limit > 0 {
			g.limit = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGate(store Store, opts ...Option) *Gate {
	if store == nil {
		store = NewMemoryStore()
	}
	gate := &Gate{
		store:  store,
		limit:  DefaultDailyLimit,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gate)
		}
	}
	return gate
}

// Check reports the current window without consuming from it.
func (g *Gate) Check(ctx context.Context) (domain.QuotaStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.lockStore(ctx)()

	state, reset := g.loadLocked(ctx)
	if reset {
		g.saveLocked(ctx, state)
	}
	return g.status(state), nil
}

// Reserve checks and consumes one call in a single step. It returns an
// *ExceededError once the window is exhausted.
func (g *Gate) Reserve(ctx context.Context) (*Reservation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.lockStore(ctx)()

	state, reset := g.loadLocked(ctx)
	if state.Count >= g.limit {
		if reset {
			g.saveLocked(ctx, state)
		}
		metrics.QuotaRejectedTotal.Inc()
		return nil, &ExceededError{Limit: g.limit, ResetTime: time.UnixMilli(state.ResetTime)}
	}
	state.Count++
	g.saveLocked(ctx, state)
	return &Reservation{gate: g, resetTime: state.ResetTime}, nil
}

// Reservation is one consumed unit of quota.
type Reservation struct {
	gate      *Gate
	resetTime int64
	once      sync.Once
}

// Release returns the unit to the window it was taken from. It is a no-op
// once that window has rolled over, and only the first call has effect.
// The store is updated even when ctx is already cancelled.
func (r *Reservation) Release(ctx context.Context) {
	if r == nil || r.gate == nil {
		return
	}
	r.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		g := r.gate
		g.mu.Lock()
		defer g.mu.Unlock()
		defer g.lockStore(ctx)()

		state, _ := g.loadLocked(ctx)
		if state.ResetTime != r.resetTime || state.Count == 0 {
			return
		}
		state.Count--
		g.saveLocked(ctx, state)
	})
}

// lockStore takes the cross-process lock when the store has one. Failing to
// lock degrades to the in-process mutex alone.
func (g *Gate) lockStore(ctx context.Context) func() {
	locker, ok := g.store.(Locker)
	if !ok {
		return func() {}
	}
	unlock, err := locker.Lock(ctx)
	if err != nil {
		g.logger.Warn("quota store lock failed", slog.String("error", err.Error()))
		return func() {}
	}
	return unlock
}

func (g *Gate) loadLocked(ctx context.Context) (State, bool) {
	now := g.now()
	state, found, err := g.store.Load(ctx)
	if err != nil {
		g.logger.Warn("quota store unavailable, using in-process state", slog.String("error", err.Error()))
		state, found = g.shadow, g.shadow.ResetTime != 0
	}
	if !found || state.ResetTime == 0 || now.UnixMilli() > state.ResetTime {
		return State{Count: 0, ResetTime: EndOfDay(now).UnixMilli()}, true
	}
	return state, false
}

func (g *Gate) saveLocked(ctx context.Context, state State) {
	g.shadow = state
	metrics.QuotaUsed.Set(float64(state.Count))
	if err := g.store.Save(ctx, state); err != nil {
		g.logger.Warn("quota store save failed", slog.String("error", err.Error()))
	}
}

func (g *Gate) status(state State) domain.QuotaStatus {
	remaining := g.limit - state.Count
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaStatus{
		Allowed:   state.Count < g.limit,
		Used:      state.Count,
		Limit:     g.limit,
		Remaining: remaining,
		ResetTime: time.UnixMilli(state.ResetTime),
	}
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
