// Command storefront drives the storefront client from a terminal. It can
// also run the in-process fake backend, standalone or behind any command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	storefront "github.com/MrEthical07/storefront"
	"github.com/MrEthical07/storefront/events"
	"github.com/MrEthical07/storefront/internal/fakeapi"
	"github.com/MrEthical07/storefront/jwt"
	"github.com/MrEthical07/storefront/notify"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type options struct {
	configPath string
	envFile    string
	baseURL    string
	store      string
	redisAddr  string
	email      string
	password   string
	fake       bool
	fakeTTL    time.Duration
	fakeAlg    string
	events     bool
	otel       bool
}

const usage = `usage: storefront [flags] <command> [args]

commands:
  serve-fake   run the fake storefront API
  categories   list product categories
  search       search products: search <query>
  pincode      check delivery: pincode <pincode>
  cart         show the cart (logs in with -email/-password)
  orders       list orders (logs in with -email/-password)
  demo         log in, buy one item and list orders
  loadtest     concurrent read load with latency percentiles
  metrics      run demo and print the metrics it produced

flags:
`

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file")
	flag.StringVar(&opts.envFile, "env", ".env", "dotenv file loaded before the config; skipped when missing")
	flag.StringVar(&opts.baseURL, "base-url", "", "API base URL; overrides the config")
	flag.StringVar(&opts.store, "store", "", "store backend: memory, redis or file; overrides the config")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flag.StringVar(&opts.email, "email", fakeapi.SeedEmail, "login email")
	flag.StringVar(&opts.password, "password", fakeapi.SeedPassword, "login password")
	flag.BoolVar(&opts.fake, "fake", false, "start an in-process fake API and point the client at it")
	flag.DurationVar(&opts.fakeTTL, "fake-ttl", 15*time.Minute, "access token lifetime of the fake API")
	flag.StringVar(&opts.fakeAlg, "fake-alg", "hs256", "token algorithm of the fake API: hs256 or ed25519")
	flag.BoolVar(&opts.events, "events", false, "write session and order events to stderr as JSON lines")
	flag.BoolVar(&opts.otel, "otel", false, "with metrics: also collect through an OpenTelemetry reader")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	var err error
	switch cmd {
	case "serve-fake":
		err = runServeFake(ctx, args)
	case "categories":
		err = withClient(ctx, opts, printer{}, runCategories)
	case "search":
		err = withClient(ctx, opts, printer{}, func(ctx context.Context, c *storefront.Client) error {
			return runSearch(ctx, c, args)
		})
	case "pincode":
		err = withClient(ctx, opts, printer{}, func(ctx context.Context, c *storefront.Client) error {
			return runPincode(ctx, c, args)
		})
	case "cart":
		err = withClient(ctx, opts, printer{}, func(ctx context.Context, c *storefront.Client) error {
			return runCart(ctx, c, opts)
		})
	case "orders":
		err = withClient(ctx, opts, printer{}, func(ctx context.Context, c *storefront.Client) error {
			return runOrders(ctx, c, opts)
		})
	case "demo":
		err = withClient(ctx, opts, printer{}, func(ctx context.Context, c *storefront.Client) error {
			return runDemo(ctx, c, opts)
		})
	case "metrics":
		err = withClient(ctx, opts, notify.Discard{}, func(ctx context.Context, c *storefront.Client) error {
			if err := runDemo(ctx, c, opts); err != nil {
				return err
			}
			return printMetrics(ctx, c, opts.otel)
		})
	case "loadtest":
		err = runLoadtest(ctx, opts, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// printer shows notices on stderr so stdout stays parseable.
type printer struct{}

func (printer) Notify(_ context.Context, n notify.Notice) {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Message)
}

// withClient builds a client from opts, runs fn and tears everything down.
func withClient(ctx context.Context, opts options, n notify.Notifier, fn func(context.Context, *storefront.Client) error) error {
	c, cleanup, err := buildClient(ctx, opts, n)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, c)
}

func buildClient(ctx context.Context, opts options, n notify.Notifier) (*storefront.Client, func(), error) {
	cfg, err := storefront.LoadConfig(opts.configPath, opts.envFile)
	if err != nil {
		return nil, nil, err
	}
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	if opts.store != "" {
		cfg.Store.Backend = storefront.StoreBackend(opts.store)
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if opts.fake {
		url, shutdown, err := startFake(opts.fakeTTL, opts.fakeAlg)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, shutdown)
		cfg.API.BaseURL = url
	}
	if opts.baseURL != "" {
		cfg.API.BaseURL = opts.baseURL
	}

	for _, w := range cfg.Lint() {
		fmt.Fprintf(os.Stderr, "config warning %s: %s\n", w.Code, w.Message)
	}

	b := storefront.New().WithConfig(cfg).WithNotifier(n)
	if opts.events {
		b.WithEventSink(events.NewJSONWriterSink(os.Stderr))
	}

	if cfg.Store.Backend == storefront.StoreRedis {
		client, closeRedis, err := openRedis(ctx, opts.redisAddr, cfg.Store.RedisAddr)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, closeRedis)
		b.WithRedis(client)
	}

	c, err := b.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { _ = c.Close() })
	return c, cleanup, nil
}

// openRedis connects to the first configured address, falling back to an
// embedded miniredis.
func openRedis(ctx context.Context, addrs ...string) (redis.UniversalClient, func(), error) {
	addr := ""
	for _, a := range append(addrs, os.Getenv("REDIS_ADDR")) {
		if a != "" {
			addr = a
			break
		}
	}

	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Fprintf(os.Stderr, "using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis at %s: %w", addr, err)
	}
	fmt.Fprintf(os.Stderr, "using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

// startFake serves a fake API on a loopback port.
func startFake(ttl time.Duration, alg string) (string, func(), error) {
	api, err := fakeapi.New(fakeapi.Config{AccessTTL: ttl, SigningMethod: jwt.SigningMethod(alg)})
	if err != nil {
		return "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	return "http://" + ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func runServeFake(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve-fake", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:8080", "listen address")
	ttl := fs.Duration("ttl", 15*time.Minute, "access token lifetime")
	alg := fs.String("alg", "hs256", "token signing algorithm: hs256 or ed25519")
	latency := fs.Duration("latency", 0, "added delay per response")
	shippingPending := fs.Bool("shipping-pending", false, "report courier booking as pending after payment")
	verbose := fs.Bool("v", false, "log every request")
	_ = fs.Parse(args)

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
		defer func() { _ = logger.Sync() }()
	}

	api, err := fakeapi.New(fakeapi.Config{AccessTTL: *ttl, SigningMethod: jwt.SigningMethod(*alg), Logger: logger})
	if err != nil {
		return err
	}
	api.SetLatency(*latency)
	api.SetShippingPending(*shippingPending)

	srv := &http.Server{Addr: *addr, Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Printf("fake storefront API on http://%s (login %s / %s, otp %s)\n",
		*addr, fakeapi.SeedEmail, fakeapi.SeedPassword, fakeapi.FixedOTP)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
