package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

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

// Client is the storefront API client. It is safe for concurrent use.
type Client struct {
	cfg       Config
	logger    *zap.Logger
	clock     clock.Clock
	metrics   *Metrics
	store     storage.Store
	ownsStore bool
	codec     storage.Codec

	ownedRedis *redis.Client

	api        *transport.Pipeline
	session    *session.Manager
	bus        *events.Bus
	dispatcher *events.Dispatcher
	cooldown   rate.Cooldown
	addresses  *address.Book
	notifier   notify.Notifier

	subs []*events.Subscription

	// bgCtx bounds work started from event handlers.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgMu     sync.Mutex
	bg       sync.WaitGroup

	cartMu   sync.RWMutex
	lastCart Cart

	wishMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
}

// Close stops the refresh timer and background work, drains the event
// dispatcher and closes stores the client opened itself. The persisted
// session is kept.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.bgMu.Lock()
		c.closed.Store(true)
		c.bgMu.Unlock()
		for _, s := range c.subs {
			s.Unsubscribe()
		}
		c.session.Close()
		c.bgCancel()
		c.bg.Wait()
		c.bus.Close()
		err = c.closeOwned()
		_ = c.logger.Sync()
	})
	return err
}

func (c *Client) closeOwned() error {
	var errs []error
	if c.ownsStore && c.store != nil {
		errs = append(errs, c.store.Close())
	}
	if c.ownedRedis != nil {
		errs = append(errs, c.ownedRedis.Close())
	}
	return errors.Join(errs...)
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config { return c.cfg }

// Metrics returns the live metrics.
func (c *Client) Metrics() *Metrics { return c.metrics }

// MetricsSnapshot copies the current metric values.
func (c *Client) MetricsSnapshot() MetricsSnapshot { return c.metrics.Snapshot() }

// EventsDropped is the number of events the async dispatcher discarded.
func (c *Client) EventsDropped() uint64 { return c.bus.Dropped() }

// Subscribe registers handler for the given event kinds, or all kinds.
// Handlers run synchronously on the goroutine that caused the event.
func (c *Client) Subscribe(handler events.Handler, kinds ...events.Kind) *events.Subscription {
	return c.bus.Subscribe(handler, kinds...)
}

// SessionState returns the current token lifecycle state.
func (c *Client) SessionState() SessionState { return c.session.State() }

// CurrentUser returns the signed-in user, if any.
func (c *Client) CurrentUser(ctx context.Context) (User, bool) {
	if c.session.State() == session.StateAnonymous {
		return User{}, false
	}
	return c.session.Identity(ctx)
}

// EnsureValid reports whether a usable session exists, refreshing an
// expired access token first.
func (c *Client) EnsureValid(ctx context.Context) bool {
	return c.session.EnsureValid(ctx)
}

// LastCart returns the cart from the most recent successful fetch.
func (c *Client) LastCart() Cart {
	c.cartMu.RLock()
	defer c.cartMu.RUnlock()
	return Cart{Items: append([]CartItem(nil), c.lastCart.Items...)}
}

func (c *Client) setLastCart(cart Cart) {
	c.cartMu.Lock()
	c.lastCart = cart
	c.cartMu.Unlock()
}

// onCartInvalidated refetches the cart after login or a placed order. It is
// best effort and never notifies.
func (c *Client) onCartInvalidated(_ context.Context, e events.Event) {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	if c.closed.Load() {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(c.bgCtx, c.cfg.API.Timeout)
		defer cancel()
		cart, err := c.fetchCart(ctx)
		if err != nil {
			c.logger.Debug("cart refetch failed", zap.String("trigger", e.Kind.String()), zap.Error(err))
			return
		}
		c.setLastCart(cart)
	}()
}

func (c *Client) onLoggedOut(context.Context, events.Event) {
	c.setLastCart(Cart{})
}

/*
====================================
REQUEST HELPERS
====================================
*/

// call sends req and decodes the response data into out when out is not
// nil. API errors carry fallback as their user message.
func (c *Client) call(ctx context.Context, req transport.Request, fallback string, out any) (transport.Result, error) {
	if c.closed.Load() {
		return transport.Result{}, ErrClientClosed
	}
	res := c.api.Do(ctx, req)
	if res.Err != nil {
		return res, transport.WithFallback(res.Err, fallback)
	}
	if out != nil {
		if err := res.Decode(out); err != nil {
			return res, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
		}
	}
	return res, nil
}

// expectCreated turns a 2xx other than 201 into an API error.
func expectCreated(res transport.Result, req transport.Request, fallback string) error {
	if res.StatusCode() == http.StatusCreated {
		return nil
	}
	msg := ""
	if res.Response != nil {
		if env, err := res.Response.Envelope(); err == nil {
			msg = env.Message
		}
	}
	return &APIError{
		StatusCode: res.StatusCode(),
		Message:    msg,
		Fallback:   fallback,
		Method:     req.Method,
		Path:       req.Path,
	}
}

// requireSession is the pre-action check. It fails with ErrNotLoggedIn and
// an info notice when no usable session exists.
func (c *Client) requireSession(ctx context.Context, prompt string) error {
	if c.session.EnsureValid(ctx) {
		return nil
	}
	c.notifier.Notify(ctx, notify.Info(prompt))
	return ErrNotLoggedIn
}

func (c *Client) succeed(ctx context.Context, msg string) {
	c.notifier.Notify(ctx, notify.Success(msg))
}

// fail reports err to the user and returns it. 401 and 403 responses are
// reported as info since the user only has to log in again.
func (c *Client) fail(ctx context.Context, err error, fallback string) error {
	return c.report(ctx, err, fallback, false)
}

// failSticky is fail with an error notice that stays until dismissed.
func (c *Client) failSticky(ctx context.Context, err error, fallback string) error {
	return c.report(ctx, err, fallback, true)
}

func (c *Client) report(ctx context.Context, err error, fallback string, sticky bool) error {
	if errors.Is(err, ErrValidation) {
		c.metrics.Inc(MetricValidationRejected)
	}
	msg := UserMessage(err, fallback)
	if errors.Is(err, ErrUnauthorized) || transport.StatusCode(err) == http.StatusForbidden {
		c.notifier.Notify(ctx, notify.Info(msg))
		return err
	}
	n := notify.Error(msg)
	if sticky {
		n = n.Sticky()
	}
	c.notifier.Notify(ctx, n)
	return err
}

// failCredentials is fail for the sign-in endpoints, where a 401 or 403
// rejects the submitted credentials rather than a session.
func (c *Client) failCredentials(ctx context.Context, err error, fallback string) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return c.fail(ctx, err, fallback)
	}
	msg := apiErr.UserMessage()
	if msg == "" {
		msg = fallback
	}
	c.notifier.Notify(ctx, notify.Error(msg))
	return err
}
