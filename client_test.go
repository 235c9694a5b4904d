package storefront

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/storefront/events"
	"github.com/MrEthical07/storefront/internal/clock"
	"github.com/MrEthical07/storefront/internal/fakeapi"
	"github.com/MrEthical07/storefront/jwt"
	"github.com/MrEthical07/storefront/notify"
	"github.com/MrEthical07/storefront/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(_ context.Context, e events.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) count(kind events.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) last(kind events.Kind) (events.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Kind == kind {
			return l.events[i], true
		}
	}
	return events.Event{}, false
}

type testEnv struct {
	api     *fakeapi.Server
	srv     *httptest.Server
	clock   *clock.Fake
	client  *Client
	notices *notify.Recorder
	events  *eventLog
}

type envSettings struct {
	accessTTL time.Duration
	signing   jwt.SigningMethod
	store     storage.Store
	redis     redis.UniversalClient
	mutate    func(*Config)
}

type envOption func(*envSettings)

func withAccessTTL(d time.Duration) envOption {
	return func(s *envSettings) { s.accessTTL = d }
}

func withSigning(m jwt.SigningMethod) envOption {
	return func(s *envSettings) { s.signing = m }
}

func withSharedStore(st storage.Store) envOption {
	return func(s *envSettings) { s.store = st }
}

func withRedisClient(rdb redis.UniversalClient) envOption {
	return func(s *envSettings) { s.redis = rdb }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	var settings envSettings
	for _, o := range opts {
		o(&settings)
	}

	clk := clock.NewFake(testStart)
	api, err := fakeapi.New(fakeapi.Config{AccessTTL: settings.accessTTL, SigningMethod: settings.signing, Now: clk.Now})
	require.NoError(t, err)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.Timeout = 5 * time.Second
	cfg.Session.RefreshTimeout = 5 * time.Second
	cfg.Metrics.Enabled = true
	if settings.mutate != nil {
		settings.mutate(&cfg)
	}

	notices := &notify.Recorder{}
	b := New().
		WithConfig(cfg).
		WithHTTPClient(srv.Client()).
		WithNotifier(notices).
		withClock(clk)
	if settings.store != nil {
		b.WithStore(settings.store)
	}
	if settings.redis != nil {
		b.WithRedis(settings.redis)
	}
	c, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	log := &eventLog{}
	c.Subscribe(log.handle)

	return &testEnv{api: api, srv: srv, clock: clk, client: c, notices: notices, events: log}
}

// settle waits for background work started by events, such as the cart
// refetch after login.
func (e *testEnv) settle() { e.client.bg.Wait() }

func (e *testEnv) login(t *testing.T) User {
	t.Helper()
	u, err := e.client.Login(context.Background(), fakeapi.SeedEmail, fakeapi.SeedPassword)
	require.NoError(t, err)
	e.settle()
	return u
}

func (e *testEnv) lastNotice(t *testing.T) notify.Notice {
	t.Helper()
	n, ok := e.notices.Last()
	require.True(t, ok, "expected a notice")
	return n
}

func testAddressPair() AddressPair {
	return AddressPair{
		Shipping: Address{
			FirstName: "Ravi", LastName: "Kumar", AddressLine1: "12 Farm Road",
			City: "Hyderabad", State: "Telangana", Pincode: "500075", Phone: "9876543210",
		},
		UseSameAddress: true,
	}
}

func TestBuilderRejectsSecondBuild(t *testing.T) {
	b := New()
	c, err := b.Build()
	require.NoError(t, err)
	defer c.Close()

	_, err = b.Build()
	require.EqualError(t, err, "builder already used")
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "not a url"
	_, err := New().WithConfig(cfg).Build()
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Address.MaxSaved = 8
	_, err = New().WithConfig(cfg).Build()
	require.Error(t, err, "address book larger than five")
}

func TestCartWhileAnonymousSendsNothing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.client.Cart(context.Background())
	require.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Empty(t, env.api.AllHits())

	n := env.lastNotice(t)
	assert.Equal(t, notify.LevelInfo, n.Level)
	assert.Equal(t, "Please log in to view your cart", n.Message)
}

func TestLoginThenCartArmsRefreshTimer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.login(t)
	assert.Equal(t, fakeapi.SeedUserID, u.UserID)
	assert.Equal(t, SessionAuthenticated, env.client.SessionState())
	assert.Equal(t, 1, env.events.count(events.KindLoggedIn))
	assert.Equal(t, uint64(1), env.client.Metrics().Value(MetricLoginSuccess))

	// 15m token with a 60s margin.
	assert.Contains(t, env.clock.Pending(), testStart.Add(14*time.Minute))

	cart, err := env.client.Cart(ctx)
	require.NoError(t, err)
	assert.True(t, cart.Empty())
	hit, ok := env.api.LastHit("cart.get")
	require.True(t, ok)
	assert.True(t, hit.Authorized)

	current, ok := env.client.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, fakeapi.SeedName, current.Name)
}

func TestEd25519SessionRefreshesOnSchedule(t *testing.T) {
	env := newTestEnv(t, withSigning(jwt.MethodEd25519))
	env.login(t)
	assert.Contains(t, env.clock.Pending(), testStart.Add(14*time.Minute))

	env.clock.Advance(14 * time.Minute)
	assert.Equal(t, 1, env.api.Hits("auth.refresh"))
	assert.Contains(t, env.clock.Pending(), testStart.Add(28*time.Minute))

	_, err := env.client.Cart(context.Background())
	require.NoError(t, err)
	hit, ok := env.api.LastHit("cart.get")
	require.True(t, ok)
	assert.True(t, hit.Authorized)
}

func TestShortLivedTokenArmsNoTimer(t *testing.T) {
	env := newTestEnv(t, withAccessTTL(30*time.Second))
	env.login(t)
	assert.Empty(t, env.clock.Pending())
}

func TestUnauthorizedTriggersSingleRefreshAndRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)
	env.api.ResetHits()

	env.api.RejectNext(1)
	_, err := env.client.Orders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.api.Hits("auth.refresh"))
	assert.Equal(t, 2, env.api.Hits("orders.list"))
	assert.Equal(t, uint64(1), env.client.Metrics().Value(MetricUnauthorizedRetry))

	env.api.ResetHits()
	env.api.RejectNext(2)
	_, err = env.client.Orders(ctx)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, env.api.Hits("auth.refresh"), "the retry must not refresh again")
	assert.Equal(t, 2, env.api.Hits("orders.list"))

	n := env.lastNotice(t)
	assert.Equal(t, notify.LevelInfo, n.Level)
	assert.Equal(t, "Session expired. Please log in again", n.Message)
}

func TestIdleExpiryOmitsHeaderAndTearsDownOnce(t *testing.T) {
	env := newTestEnv(t, withAccessTTL(30*time.Second))
	ctx := context.Background()
	env.login(t)

	env.clock.Advance(31 * time.Second)

	_, err := env.client.Categories(ctx)
	require.NoError(t, err)
	hit, ok := env.api.LastHit("catalog.categories")
	require.True(t, ok)
	assert.False(t, hit.Authorized, "expired token must not be sent")

	assert.Equal(t, SessionAnonymous, env.client.SessionState())
	assert.Equal(t, 1, env.events.count(events.KindLoggedOut))
	e, _ := env.events.last(events.KindLoggedOut)
	assert.Equal(t, events.ReasonTokenExpired, e.Reason)

	_, err = env.client.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, env.events.count(events.KindLoggedOut), "teardown fires once")

	env.api.ResetHits()
	_, err = env.client.Cart(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Empty(t, env.api.AllHits())
}

func TestProactiveRefreshBeforeExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	env.clock.Advance(14 * time.Minute)
	assert.Equal(t, 1, env.api.Hits("auth.refresh"))
	assert.Equal(t, SessionAuthenticated, env.client.SessionState())
	assert.Contains(t, env.clock.Pending(), testStart.Add(28*time.Minute))
	assert.Equal(t, uint64(1), env.client.Metrics().Value(MetricRefreshSuccess))
}

func TestRejectedRefreshTearsDown(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.api.FailRefresh(true)

	env.clock.Advance(14 * time.Minute)
	assert.Equal(t, SessionAnonymous, env.client.SessionState())
	assert.Equal(t, 1, env.events.count(events.KindLoggedOut))
	e, _ := env.events.last(events.KindLoggedOut)
	assert.Equal(t, events.ReasonRefreshFailed, e.Reason)

	_, ok := env.client.CurrentUser(context.Background())
	assert.False(t, ok)
}

func TestLogoutClearsSessionAndCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)
	require.NoError(t, env.client.AddToCart(ctx, "v-chilli-50g", ""))
	require.False(t, env.client.LastCart().Empty())

	env.client.Logout(ctx)
	assert.Equal(t, SessionAnonymous, env.client.SessionState())
	assert.True(t, env.client.LastCart().Empty())
	assert.Equal(t, "Logged out successfully", env.lastNotice(t).Message)

	env.client.Logout(ctx)
	assert.Equal(t, 1, env.events.count(events.KindLoggedOut))
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.Login(ctx, "farmer@", "secret123")
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, env.api.AllHits())

	_, err = env.client.Login(ctx, fakeapi.SeedEmail, "wrong-password")
	require.Error(t, err)
	n := env.lastNotice(t)
	assert.Equal(t, notify.LevelError, n.Level)
	assert.Equal(t, "Invalid email or password", n.Message)
	assert.Equal(t, SessionAnonymous, env.client.SessionState())

	_, err = env.client.Login(ctx, "stranger@example.com", "secret123")
	require.ErrorIs(t, err, ErrNotRegistered)
	assert.Equal(t, "Email not registered. Please sign up first.", env.lastNotice(t).Message)
	assert.Equal(t, uint64(2), env.client.Metrics().Value(MetricLoginFailure))
}

func TestOTPLoginWithCooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.client.RequestLoginOTP(ctx, fakeapi.SeedPhone))
	assert.Equal(t, msgOTPSent, env.lastNotice(t).Message)

	err := env.client.RequestLoginOTP(ctx, fakeapi.SeedPhone)
	require.ErrorIs(t, err, ErrOTPCooldown)
	n := env.lastNotice(t)
	assert.Equal(t, notify.LevelWarning, n.Level)
	assert.Equal(t, "Please wait 60s before requesting another OTP", n.Message)
	assert.Equal(t, 1, env.api.Hits("auth.login_otp_request"))

	env.clock.Advance(61 * time.Second)
	require.NoError(t, env.client.RequestLoginOTP(ctx, fakeapi.SeedPhone))
	assert.Equal(t, 2, env.api.Hits("auth.login_otp_request"))

	u, err := env.client.VerifyLoginOTP(ctx, fakeapi.SeedPhone, fakeapi.FixedOTP)
	require.NoError(t, err)
	assert.Equal(t, fakeapi.SeedUserID, u.UserID)
	env.settle()
}

func TestOTPCooldownOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, withRedisClient(rdb))
	ctx := context.Background()

	require.NoError(t, env.client.RequestLoginOTP(ctx, fakeapi.SeedPhone))
	require.ErrorIs(t, env.client.RequestLoginOTP(ctx, fakeapi.SeedPhone), ErrOTPCooldown)

	mr.FastForward(61 * time.Second)
	require.NoError(t, env.client.RequestLoginOTP(ctx, fakeapi.SeedPhone))
}

func TestOTPRequestForUnknownPhoneReleasesCooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.client.RequestLoginOTP(ctx, "9000000000")
	require.ErrorIs(t, err, ErrNotRegistered)
	err = env.client.RequestLoginOTP(ctx, "9000000000")
	require.ErrorIs(t, err, ErrNotRegistered, "a failed request must not start the cooldown")
}

func TestRegistrationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg := Registration{Name: "Asha Devi", Email: "asha@example.in", Phone: "9123456780", Password: "green123"}

	require.NoError(t, env.client.RequestRegistrationOTP(ctx, reg))
	u, err := env.client.VerifyRegistrationOTP(ctx, reg.Phone, fakeapi.FixedOTP)
	require.NoError(t, err)
	env.settle()

	assert.Equal(t, "Asha Devi", u.Name)
	assert.Equal(t, "Account created successfully!", env.lastNotice(t).Message)
	assert.Equal(t, SessionAuthenticated, env.client.SessionState())

	details, err := env.client.UserDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.in", details.Email)
}

func TestAddToCartConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)

	require.NoError(t, env.client.AddToCart(ctx, "v-tomato-100g", ""))
	assert.Equal(t, "Item added to cart successfully!", env.lastNotice(t).Message)
	require.Len(t, env.client.LastCart().Items, 1)

	err := env.client.AddToCart(ctx, "v-tomato-100g", "")
	require.ErrorIs(t, err, ErrAlreadyInCart)
	n := env.lastNotice(t)
	assert.Equal(t, notify.LevelError, n.Level)
	assert.Equal(t, "Item already exists in cart", n.Message)
	assert.Equal(t, uint64(1), env.client.Metrics().Value(MetricCartConflict))

	err = env.client.AddToCart(ctx, "", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestCartRepricingAndRemoval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)

	require.NoError(t, env.client.AddToCart(ctx, "v-mango-1", ""))
	cart, err := env.client.Cart(ctx)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	item := cart.Items[0]
	assert.True(t, item.IsPlant())
	assert.Equal(t, "1", item.PlantAge)

	updated, err := env.client.SetPlantAge(ctx, item, "2")
	require.NoError(t, err)
	assert.Equal(t, 600.0, updated.Price)
	assert.Equal(t, 540.0, updated.AfterDiscountPrice)

	cart, err = env.client.Cart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 540.0, cart.Items[0].AfterDiscountPrice)
	assert.Equal(t, "2", cart.Items[0].PlantAge)

	_, err = env.client.SetPlantAge(ctx, item, "4")
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, env.client.UpdateQuantity(ctx, item.CartItemID, 3))
	assert.Equal(t, 3, env.client.LastCart().Items[0].Quantity)

	require.NoError(t, env.client.UpdateQuantity(ctx, item.CartItemID, 0))
	assert.Equal(t, "Item removed from cart", env.lastNotice(t).Message)
	assert.True(t, env.client.LastCart().Empty())
}

func TestSetSizeUsesListedPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)

	require.NoError(t, env.client.AddToCart(ctx, "v-neem-500", "500ml"))
	item := env.client.LastCart().Items[0]

	updated, err := env.client.SetSize(ctx, item, "1L")
	require.NoError(t, err)
	assert.Equal(t, "1L", updated.UnitMeasurement)
	assert.Equal(t, 450.0, updated.Price)
}

func TestCheckoutPlacesOrderAndSavesAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)

	require.NoError(t, env.client.AddToCart(ctx, "v-tomato-100g", ""))
	cart, err := env.client.Cart(ctx)
	require.NoError(t, err)

	initiated, err := env.client.InitiateOrder(ctx, testAddressPair(), cart)
	require.NoError(t, err)
	assert.Equal(t, 158.0, initiated.TotalAmount)
	assert.Equal(t, "Order initiated successfully", env.lastNotice(t).Message)

	saved, err := env.client.SavedAddresses(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, saved[0].Shipping, saved[0].Billing, "billing is stored as effective")

	env.api.SetShippingPending(true)
	placed, err := env.client.ConfirmPayment(ctx, PaymentConfirmation{
		RazorpayOrderID:   initiated.RazorpayOrderID,
		RazorpayPaymentID: "pay_test_1",
		RazorpaySignature: "sig",
		Amount:            "158",
		OrderID:           initiated.OrderID,
	})
	require.NoError(t, err)
	env.settle()

	assert.True(t, strings.HasPrefix(placed.OrderID, "ORD-"))
	assert.True(t, placed.ShippingPending)
	assert.Equal(t, []string{"Tomato Seeds"}, placed.ProductNames)
	assert.Equal(t, "Payment Successful! Shipping details are being processed.", env.lastNotice(t).Message)

	e, ok := env.events.last(events.KindOrderPlaced)
	require.True(t, ok)
	assert.Equal(t, placed.OrderID, e.OrderID)
	assert.Equal(t, fakeapi.SeedUserID, e.UserID)
	assert.True(t, env.client.LastCart().Empty(), "cart is refetched after the order")

	orders, err := env.client.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	pdf, err := env.client.Invoice(ctx, orders[0].InvoiceID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Equal(t, "Invoice downloaded successfully!", env.lastNotice(t).Message)
}

func TestConfirmPaymentWithUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)

	_, err := env.client.ConfirmPayment(ctx, PaymentConfirmation{
		RazorpayOrderID:   "order_missing",
		RazorpayPaymentID: "pay_1",
		OrderID:           "tmp-missing",
	})
	require.Error(t, err)
	n := env.lastNotice(t)
	assert.Equal(t, msgInvalidOrderID, n.Message)
	assert.Zero(t, n.AutoClose, "payment failures stay until dismissed")
	assert.Zero(t, env.events.count(events.KindOrderPlaced))
}

func TestInitiateOrderChecksBeforeSending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)
	env.api.ResetHits()

	bad := testAddressPair()
	bad.Shipping.Pincode = "5000"
	_, err := env.client.InitiateOrder(ctx, bad, Cart{Items: []CartItem{{CartItemID: "ci-1"}}})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "shipping.pincode", vErr.Field)

	_, err = env.client.InitiateOrder(ctx, testAddressPair(), Cart{})
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, "No items in cart", env.lastNotice(t).Message)

	assert.Empty(t, env.api.AllHits())
}

func TestInvoiceWithoutID(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.client.Invoice(context.Background(), "")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "No invoice available for this order.", env.lastNotice(t).Message)
}

func TestPincodeDebounceIssuesOneRequest(t *testing.T) {
	env := newTestEnv(t)

	var (
		mu      sync.Mutex
		results []string
		last    Serviceability
	)
	check := env.client.NewPincodeCheck(func(pin string, s Serviceability, err error) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, pin)
		last = s
		assert.NoError(t, err)
	})
	defer check.Close()

	check.Submit("5000")
	env.clock.Advance(100 * time.Millisecond)
	check.Submit("500001")
	env.clock.Advance(100 * time.Millisecond)
	check.Submit("500075")
	env.clock.Advance(500 * time.Millisecond)
	check.Wait()

	assert.Equal(t, 1, env.api.Hits("catalog.pincode"))
	hit, _ := env.api.LastHit("catalog.pincode")
	assert.Equal(t, "/user/pincode/500075", hit.Path)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"500075"}, results)
	assert.True(t, last.Serviceable)
	assert.Equal(t, "Hyderabad", last.City)
}

func TestCheckPincode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.client.CheckPincode(ctx, "110001")
	require.NoError(t, err)
	assert.False(t, s.Serviceable)

	s, err = env.client.CheckPincode(ctx, "999999")
	require.NoError(t, err, "unknown pincodes are not serviceable, not errors")
	assert.False(t, s.Serviceable)
	assert.Equal(t, "999999", s.Pincode)

	_, err = env.client.CheckPincode(ctx, "12ab56")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Pincode must be 6 digits", env.lastNotice(t).Message)
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cats, err := env.client.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 3)

	seeds, err := env.client.ProductsByCategory(ctx, "cat-seeds")
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	for _, p := range seeds {
		assert.NotEmpty(t, p.Variants, p.ProductID)
	}

	all, err := env.client.ProductsByCategory(ctx, "all")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	found, err := env.client.Search(ctx, "  mango ")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "p-mango", found[0].ProductID)

	env.api.ResetHits()
	found, err = env.client.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Empty(t, env.api.AllHits())

	_, err = env.client.Product(ctx, "p-missing")
	require.Error(t, err)
	assert.Equal(t, "Product not found", env.lastNotice(t).Message)
}

func TestWishlist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	added, err := env.client.ToggleWishlist(ctx, "p-mango")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "Added to wishlist", env.lastNotice(t).Message)
	_, err = env.client.ToggleWishlist(ctx, "p-neem")
	require.NoError(t, err)

	products, err := env.client.WishlistProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p-mango", products[0].ProductID)
	assert.NotEmpty(t, products[0].Variants)

	added, err = env.client.ToggleWishlist(ctx, "p-mango")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, "Removed from wishlist", env.lastNotice(t).Message)

	require.NoError(t, env.client.RemoveFromWishlist(ctx, "p-neem"))
	ids, err := env.client.Wishlist(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRestoreOnBuildAdoptsStoredSession(t *testing.T) {
	store := storage.NewMemoryStore()
	first := newTestEnv(t, withSharedStore(store))
	first.login(t)
	require.NoError(t, first.client.Close())

	// A second client on the same store, as after a restart. Its fake
	// backend shares the signing secret, so the stored token verifies.
	second := newTestEnv(t, withSharedStore(store))
	assert.Equal(t, SessionAuthenticated, second.client.SessionState())

	u, ok := second.client.CurrentUser(context.Background())
	require.True(t, ok)
	assert.Equal(t, fakeapi.SeedUserID, u.UserID)
	_, err := second.client.Cart(context.Background())
	require.NoError(t, err)
}

func TestCloseStopsRequests(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.client.Close())
	require.NoError(t, env.client.Close())

	_, err := env.client.Categories(context.Background())
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestRequestIDIsPinned(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	id, ok := RequestID(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-123", id)

	_, ok = RequestID(context.Background())
	assert.False(t, ok)
}
