package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	storefront "github.com/MrEthical07/storefront"
	"github.com/MrEthical07/storefront/notify"
)

var searchTerms = []string{"tomato", "chilli", "mango", "neem", "seeds", "plant"}

// runLoadtest hammers read endpoints through one shared client. The cart
// phase exercises token injection and the refresh path under concurrency.
func runLoadtest(ctx context.Context, opts options, args []string) error {
	fs := flag.NewFlagSet("loadtest", flag.ExitOnError)
	concurrency := fs.Int("concurrency", 32, "number of concurrent workers")
	ops := fs.Int("ops", 2000, "operations per phase")
	_ = fs.Parse(args)

	if *concurrency <= 0 || *ops <= 0 {
		return errors.New("concurrency and ops must be > 0")
	}

	return withClient(ctx, opts, notify.Discard{}, func(ctx context.Context, c *storefront.Client) error {
		if err := ensureLogin(ctx, c, opts); err != nil {
			return err
		}

		categories := runPhase(*ops, *concurrency, func(*rand.Rand) error {
			_, err := c.Categories(ctx)
			return err
		})
		search := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
			_, err := c.Search(ctx, searchTerms[r.Intn(len(searchTerms))])
			return err
		})
		cart := runPhase(*ops, *concurrency, func(*rand.Rand) error {
			_, err := c.Cart(ctx)
			return err
		})

		fmt.Println("---- results ----")
		printStats("categories", categories)
		printStats("search", search)
		printStats("cart", cart)
		fmt.Printf("refreshes=%d unauthorized_retries=%d\n",
			c.Metrics().Value(storefront.MetricRefreshSuccess),
			c.Metrics().Value(storefront.MetricUnauthorizedRetry))
		return nil
	})
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
