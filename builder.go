package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/storefront/address"
	"github.com/MrEthical07/storefront/events"
	"github.com/MrEthical07/storefront/internal/clock"
	"github.com/MrEthical07/storefront/internal/rate"
	"github.com/MrEthical07/storefront/internal/transport"
	"github.com/MrEthical07/storefront/notify"
	"github.com/MrEthical07/storefront/session"
	"github.com/MrEthical07/storefront/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a Client.
//
// Builder instances are configured once and then consumed by Build.
type Builder struct {
	config     Config
	store      storage.Store
	redis      redis.UniversalClient
	httpClient *http.Client
	logger     *zap.Logger
	notifier   notify.Notifier
	sink       events.Sink
	clock      clock.Clock

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore supplies the persisted-state store. It overrides
// Config.Store.Backend and is not closed by Client.Close.
func (b *Builder) WithStore(s storage.Store) *Builder {
	b.store = s
	return b
}

// WithRedis supplies the Redis client used by the redis store backend and
// the OTP cooldown. The client is not closed by Client.Close.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient replaces the HTTP client. Its Timeout should be zero; the
// per-request timeout comes from Config.API.Timeout.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLogger replaces the logger built from Config.Logging.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithNotifier sets where user-facing notices go.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithEventSink copies every event to sink through the async dispatcher.
func (b *Builder) WithEventSink(sink events.Sink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) withClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// Build validates the configuration and wires the Client. A Builder can be
// built once.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		l, err := newLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		logger = l
	}
	clk := b.clock
	if clk == nil {
		clk = clock.Real()
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		clock:   clk,
		metrics: NewMetrics(cfg.Metrics),
	}
	c.bgCtx, c.bgCancel = context.WithCancel(context.Background())

	// -------- STORE --------
	codec, err := storage.CodecByName(cfg.Store.Codec)
	if err != nil {
		return nil, err
	}
	c.codec = codec

	rdb := b.redis
	if b.store != nil {
		c.store = b.store
	} else {
		switch cfg.Store.Backend {
		case StoreMemory:
			c.store = storage.NewMemoryStore()
		case StoreRedis:
			if rdb == nil {
				if cfg.Store.RedisAddr == "" {
					return nil, errors.New("Redis store requires a redis client or Store RedisAddr")
				}
				owned := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
				rdb = owned
				c.ownedRedis = owned
			}
			c.store = storage.NewRedisStore(rdb, cfg.Store.RedisPrefix)
		case StoreFile:
			fs, err := storage.OpenFileStore(cfg.Store.FilePath, cfg.Store.FilePassphrase)
			if err != nil {
				return nil, err
			}
			c.store = fs
		}
		c.ownsStore = true
	}

	// -------- EVENTS --------
	c.dispatcher = events.NewDispatcher(events.DispatcherConfig{
		Enabled:    cfg.Events.Async || b.sink != nil,
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, b.sink)
	c.bus = events.NewBus(c.dispatcher)

	// -------- NOTICES --------
	switch {
	case b.notifier != nil:
		c.notifier = b.notifier
	case cfg.Notify.Log:
		c.notifier = notify.NewLogNotifier(logger)
	default:
		c.notifier = notify.Discard{}
	}

	// -------- OTP COOLDOWN --------
	if cfg.OTP.ResendCooldown > 0 {
		rc := rate.Config{Window: cfg.OTP.ResendCooldown}
		if rdb != nil {
			rc.Prefix = cfg.Store.RedisPrefix + ":otp:"
			c.cooldown = rate.NewRedis(rdb, rc)
		} else {
			c.cooldown = rate.NewMemory(rc, clk)
		}
	}

	// -------- SESSION --------
	c.session = session.NewManager(session.Config{
		RefreshMargin:  cfg.Session.RefreshMargin,
		RefreshTimeout: cfg.Session.RefreshTimeout,
	}, c.store, session.RefresherFunc(c.exchangeRefreshToken),
		session.WithClock(clk),
		session.WithLogger(logger.Named("session")),
		session.WithPublisher(c.bus),
		session.WithCodec(codec),
		session.WithRejectedFunc(isRefreshRejected),
		session.WithHooks(session.Hooks{
			RefreshSucceeded: func() { c.metrics.Inc(MetricRefreshSuccess) },
			RefreshFailed:    func(string, error) { c.metrics.Inc(MetricRefreshFailure) },
			TornDown:         func(string) { c.metrics.Inc(MetricSessionTeardown) },
		}),
	)

	// -------- TRANSPORT --------
	api, err := transport.New(transport.Config{
		BaseURL:      cfg.API.BaseURL,
		Timeout:      cfg.API.Timeout,
		UserAgent:    cfg.API.UserAgent,
		MaxBodyBytes: cfg.API.MaxBodyBytes,
	}, b.httpClient, c.session,
		transport.WithLogger(logger.Named("transport")),
		transport.WithHooks(transport.Hooks{
			RequestDone:          c.observeRequest,
			RetriedAfterRefresh:  func() { c.metrics.Inc(MetricUnauthorizedRetry) },
			UnauthorizedSurfaced: func() { c.metrics.Inc(MetricUnauthorizedSurfaced) },
		}),
	)
	if err != nil {
		c.closeOwned()
		return nil, err
	}
	c.api = api

	// -------- ADDRESS BOOK --------
	c.addresses = address.NewBook(c.store,
		address.WithCodec(codec),
		address.WithCapacity(cfg.Address.MaxSaved),
		address.WithLogger(logger.Named("address")),
	)

	c.subs = append(c.subs,
		c.bus.Subscribe(c.onCartInvalidated, events.KindLoggedIn, events.KindOrderPlaced),
		c.bus.Subscribe(c.onLoggedOut, events.KindLoggedOut),
	)

	b.built = true

	if cfg.Session.RestoreOnBuild {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.RefreshTimeout)
		defer cancel()
		if err := c.session.Restore(ctx); err != nil {
			logger.Info("stored session could not be restored", zap.Error(err))
		}
	}

	return c, nil
}

// isRefreshRejected reports whether the refresh endpoint refused the token
// itself, as opposed to failing in transit.
func isRefreshRejected(err error) bool {
	switch transport.StatusCode(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

func (c *Client) observeRequest(method, path string, status int, d time.Duration, err error) {
	c.metrics.Observe(MetricRequestLatency, d)
	switch {
	case errors.Is(err, ErrTimeout):
		c.metrics.Inc(MetricRequestTimeout)
	case errors.Is(err, ErrNetwork):
		c.metrics.Inc(MetricNetworkError)
	}
	if err != nil && status == 0 {
		c.logger.Debug("request failed without response",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
	}
}

func (c *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) (session.Pair, error) {
	res := c.api.Do(ctx, transport.Request{
		Method:   http.MethodPost,
		Path:     "/user/refresh-token",
		Body:     map[string]string{"refreshToken": refreshToken},
		SkipAuth: true,
	})
	var pair session.Pair
	if err := res.Decode(&pair); err != nil {
		return session.Pair{}, fmt.Errorf("refresh token exchange: %w", err)
	}
	return pair, nil
}
