package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/storefront/events"
	"github.com/MrEthical07/storefront/internal/clock"
	"github.com/MrEthical07/storefront/internal/flows"
	"github.com/MrEthical07/storefront/jwt"
	"github.com/MrEthical07/storefront/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Manager keeps exactly one access token usable for outgoing requests.
type Manager struct {
	store      storage.Store
	codec      storage.Codec
	refresher  Refresher
	cfg        Config
	clock      clock.Clock
	logger     *zap.Logger
	publisher  events.Publisher
	hooks      Hooks
	isRejected func(error) bool

	// mu guards the fields below and serializes writes of the token entries.
	mu       sync.Mutex
	state    State
	userID   string
	epoch    uint64
	timer    clock.Timer
	timerGen uint64

	group singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithHooks(h Hooks) Option {
	return func(m *Manager) { m.hooks = h }
}

func WithCodec(c storage.Codec) Option {
	return func(m *Manager) { m.codec = c }
}

// WithRejectedFunc tells the manager which refresher errors mean the server
// refused the refresh token.
func WithRejectedFunc(f func(error) bool) Option {
	return func(m *Manager) { m.isRejected = f }
}

// NewManager builds a Manager in the anonymous state. Call Restore to pick
// up a session persisted by an earlier process.
func NewManager(cfg Config, store storage.Store, refresher Refresher, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = def.RefreshMargin
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = def.RefreshTimeout
	}
	m := &Manager{
		store:     store,
		codec:     storage.JSON{},
		refresher: refresher,
		cfg:       cfg,
		clock:     clock.Real(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsExpired reports whether token is empty, undecodable, lacks exp or has
// exp <= now.
func (m *Manager) IsExpired(token string) bool {
	return jwt.IsExpired(token, m.clock.Now())
}

// CurrentToken re-reads the stored access token. It returns "" when there is
// no session. A stored token that has expired is never returned; the
// session is torn down instead, unless a refresh is already in flight.
// When the stored pair was removed by another process sharing the store,
// the manager drops back to anonymous without publishing a second logout.
func (m *Manager) CurrentToken(ctx context.Context) (string, error) {
	token, err := m.load(ctx, storage.KeyAccessToken)
	if err != nil {
		return "", err
	}
	if token == "" {
		m.forgetRemoved(ctx)
		return "", nil
	}
	if !m.IsExpired(token) {
		return token, nil
	}

	if m.State() == StateRefreshing {
		return "", nil
	}
	m.Teardown(ctx, events.ReasonTokenExpired)
	return "", nil
}

func (m *Manager) forgetRemoved(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return
	}
	if _, err := m.store.Get(ctx, storage.KeyAccessToken); !errors.Is(err, storage.ErrNotFound) {
		return
	}
	m.logger.Info("stored session removed elsewhere", zap.String("user_id", m.userID))
	m.epoch++
	m.state = StateAnonymous
	m.userID = ""
	m.stopTimerLocked()
}

// Identity returns the stored user identity.
func (m *Manager) Identity(ctx context.Context) (Identity, bool) {
	raw, err := m.store.Get(ctx, storage.KeyUser)
	if err != nil {
		return Identity{}, false
	}
	var id Identity
	if err := m.codec.Unmarshal(raw, &id); err != nil {
		m.logger.Warn("stored identity is unreadable", zap.Error(err))
		return Identity{}, false
	}
	return id, id.UserID != ""
}

// Establish stores a freshly issued pair and identity, moves to
// AUTHENTICATED, arms the proactive refresh and publishes LoggedIn.
func (m *Manager) Establish(ctx context.Context, pair Pair, id Identity) error {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return errors.New("session: establish requires both tokens")
	}
	encoded, err := m.codec.Marshal(id)
	if err != nil {
		return fmt.Errorf("session: encode identity: %w", err)
	}

	m.mu.Lock()
	err = m.store.SetMany(ctx, map[string][]byte{
		storage.KeyAccessToken:  []byte(pair.AccessToken),
		storage.KeyRefreshToken: []byte(pair.RefreshToken),
		storage.KeyUser:         encoded,
	})
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("session: store pair: %w", err)
	}
	m.epoch++
	m.state = StateAuthenticated
	m.userID = id.UserID
	m.mu.Unlock()

	m.ScheduleProactiveRefresh(ctx)
	m.logger.Info("session established", zap.String("user_id", id.UserID))
	m.publish(ctx, events.LoggedIn(id.UserID))
	return nil
}

// Restore adopts a session left in the store by an earlier run. A live token
// resumes AUTHENTICATED with the timer armed; an expired one is refreshed.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.load(ctx, storage.KeyAccessToken)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	id, _ := m.Identity(ctx)
	m.mu.Lock()
	m.state = StateAuthenticated
	m.userID = id.UserID
	m.mu.Unlock()

	if !m.IsExpired(token) {
		m.ScheduleProactiveRefresh(ctx)
		return nil
	}
	_, err = m.Refresh(ctx)
	return err
}

// EnsureValid is the check run before user-initiated actions. It is false
// without a token, true with a live token, and otherwise the outcome of a
// refresh.
func (m *Manager) EnsureValid(ctx context.Context) bool {
	token, err := m.load(ctx, storage.KeyAccessToken)
	if err != nil || token == "" {
		return false
	}
	if !m.IsExpired(token) {
		return true
	}
	_, err = m.Refresh(ctx)
	return err == nil
}

// Refresh exchanges the stored refresh token for a new pair. Concurrent
// callers share one exchange. On failure the session is torn down and the
// returned error wraps ErrRefreshFailed.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	v, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.RefreshTimeout)
		defer cancel()
		return m.refresh(rctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	epoch := m.epoch
	prev := m.state
	m.state = StateRefreshing
	m.mu.Unlock()

	res := flows.RunRefresh(ctx, flows.RefreshDeps{
		LoadRefreshToken: func(ctx context.Context) (string, error) {
			return m.load(ctx, storage.KeyRefreshToken)
		},
		Exchange: func(ctx context.Context, refreshToken string) (string, string, error) {
			if m.refresher == nil {
				return "", "", errors.New("session: no refresher configured")
			}
			pair, err := m.refresher.RefreshTokens(ctx, refreshToken)
			return pair.AccessToken, pair.RefreshToken, err
		},
		IsRejected: m.isRejected,
		IsExpired:  m.IsExpired,
		SavePair: func(ctx context.Context, access, refresh string) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.epoch != epoch {
				return ErrSessionReplaced
			}
			return m.store.SetMany(ctx, map[string][]byte{
				storage.KeyAccessToken:  []byte(access),
				storage.KeyRefreshToken: []byte(refresh),
			})
		},
		Warn: func(msg string, _ ...any) { m.logger.Warn(msg) },
	})

	if res.Failure != flows.RefreshFailureNone {
		if errors.Is(res.Err, ErrSessionReplaced) {
			return "", res.Err
		}
		m.mu.Lock()
		if m.epoch == epoch {
			if prev == StateAnonymous {
				m.state = StateAnonymous
			} else {
				m.state = StateExpired
			}
		}
		m.mu.Unlock()

		m.logger.Warn("token refresh failed",
			zap.String("kind", res.Failure.String()),
			zap.Error(res.Err),
		)
		if m.hooks.RefreshFailed != nil {
			m.hooks.RefreshFailed(res.Failure.String(), res.Err)
		}
		m.teardown(ctx, events.ReasonRefreshFailed, &epoch)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, res.Err)
	}

	m.mu.Lock()
	if m.epoch == epoch {
		m.state = StateAuthenticated
	}
	m.mu.Unlock()

	if m.hooks.RefreshSucceeded != nil {
		m.hooks.RefreshSucceeded()
	}
	m.logger.Debug("token refreshed", zap.Bool("kept_refresh_token", res.KeptRefreshToken))
	m.ScheduleProactiveRefresh(ctx)
	return res.AccessToken, nil
}

// ScheduleProactiveRefresh arms a single-shot timer at expiry minus the
// refresh margin, replacing any earlier timer. When that offset is not
// positive no timer is armed and refresh is left to the reactive path.
func (m *Manager) ScheduleProactiveRefresh(ctx context.Context) (time.Duration, bool) {
	token, err := m.load(ctx, storage.KeyAccessToken)

	m.mu.Lock()
	m.stopTimerLocked()
	if err != nil || token == "" {
		m.mu.Unlock()
		return 0, false
	}
	delay := jwt.Remaining(token, m.clock.Now()) - m.cfg.RefreshMargin
	if delay <= 0 {
		m.mu.Unlock()
		return 0, false
	}
	m.timerGen++
	gen := m.timerGen
	m.timer = m.clock.AfterFunc(delay, func() { m.onTimer(gen) })
	m.mu.Unlock()

	if m.hooks.TimerArmed != nil {
		m.hooks.TimerArmed(delay)
	}
	m.logger.Debug("proactive refresh armed", zap.Duration("delay", delay))
	return delay, true
}

func (m *Manager) onTimer(gen uint64) {
	m.mu.Lock()
	if gen != m.timerGen || m.state != StateAuthenticated {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	if _, err := m.Refresh(context.Background()); err != nil {
		m.logger.Info("proactive refresh did not complete", zap.Error(err))
	}
}

// Logout ends the session on user request.
func (m *Manager) Logout(ctx context.Context) {
	m.Teardown(ctx, events.ReasonUserLogout)
}

// Teardown clears the token pair and identity and stops the timer. LoggedOut
// is published only when there was a session to end, so repeated calls are
// silent.
func (m *Manager) Teardown(ctx context.Context, reason events.LogoutReason) {
	m.teardown(ctx, reason, nil)
}

func (m *Manager) teardown(ctx context.Context, reason events.LogoutReason, onlyEpoch *uint64) {
	m.mu.Lock()
	if onlyEpoch != nil && *onlyEpoch != m.epoch {
		m.mu.Unlock()
		return
	}
	prev := m.state
	userID := m.userID
	_, storedErr := m.store.Get(ctx, storage.KeyAccessToken)
	hadStored := storedErr == nil
	if !hadStored {
		_, storedErr = m.store.Get(ctx, storage.KeyRefreshToken)
		hadStored = storedErr == nil
	}

	m.epoch++
	m.state = StateAnonymous
	m.userID = ""
	m.stopTimerLocked()
	delErr := m.store.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyUser)
	m.mu.Unlock()

	if delErr != nil {
		m.logger.Warn("clearing session state failed", zap.Error(delErr))
	}
	if prev == StateAnonymous && !hadStored {
		return
	}

	m.logger.Info("session torn down", zap.String("reason", string(reason)), zap.String("user_id", userID))
	if m.hooks.TornDown != nil {
		m.hooks.TornDown(string(reason))
	}
	m.publish(ctx, events.LoggedOut(userID, reason))
}

// Close stops the proactive refresh timer.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopTimerLocked()
	m.mu.Unlock()
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

func (m *Manager) load(ctx context.Context, key string) (string, error) {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("session: load %s: %w", key, err)
	}
	return string(raw), nil
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if m.publisher != nil {
		m.publisher.Publish(ctx, e)
	}
}
