// Command ratelimit-loadtest drives one rate-limit key from several
// processes' worth of clients sharing a Redis, and reports how many
// requests were admitted beyond the limit.
//
// Each simulated process owns its own store client and limiter, so the
// in-process key lock does not serialize them. The overshoot printed at the
// end is the cost of the non-atomic read-then-write under a shared store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/pflag"

	"github.com/oriolmontcreus/cms-sub000/internal/rate"
	"github.com/oriolmontcreus/cms-sub000/store"
)

func main() {
	var (
		processes   int
		concurrency int
		requests    int
		limit       int
		window      time.Duration
		redisAddr   string
	)

	flagSet := pflag.NewFlagSet("ratelimit-loadtest", pflag.ExitOnError)
	flagSet.IntVar(&processes, "processes", 4, "simulated processes, each with its own store client")
	flagSet.IntVar(&concurrency, "concurrency", 64, "workers per process")
	flagSet.IntVar(&requests, "requests", 20000, "total requests across all workers")
	flagSet.IntVar(&limit, "limit", 1000, "requests allowed per window")
	flagSet.DurationVar(&window, "window", time.Minute, "window length")
	flagSet.StringVar(&redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR or an in-process miniredis is used")
	_ = flagSet.Parse(os.Args[1:])

	if processes <= 0 || concurrency <= 0 || requests <= 0 || limit <= 0 {
		fmt.Fprintln(os.Stderr, "processes, concurrency, requests and limit must be > 0")
		os.Exit(2)
	}

	if redisAddr == "" {
		redisAddr = os.Getenv("REDIS_ADDR")
	}
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", redisAddr)
	} else {
		fmt.Printf("using redis at %s\n", redisAddr)
	}

	ctx := context.Background()
	key := rate.Key("/loadtest", fmt.Sprintf("run:%d", time.Now().UnixNano()))
	policy := rate.Policy{Limit: limit, Window: window}

	limiters := make([]*rate.Limiter, processes)
	for i := range limiters {
		client := store.NewClient(store.WithCandidates(store.Candidate{Addr: redisAddr}))
		defer client.Close()
		if s := client.Connect(ctx); s != store.StateConnected {
			fmt.Fprintf(os.Stderr, "process %d: store state %s\n", i, s)
			os.Exit(1)
		}
		limiters[i] = rate.New(store.New[rate.Window](client, nil), nil)
	}

	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		allowed   atomic.Int64
		rejected  atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, requests)
	)

	start := time.Now()
	for _, l := range limiters {
		for range concurrency {
			wg.Add(1)
			go func() {
				defer wg.Done()
				local := make([]time.Duration, 0, requests/(processes*concurrency)+1)
				for cursor.Add(1) <= int64(requests) {
					t0 := time.Now()
					_, err := l.Allow(ctx, key, policy)
					local = append(local, time.Since(t0))
					switch {
					case err == nil:
						allowed.Add(1)
					case errors.Is(err, rate.ErrRateLimited):
						rejected.Add(1)
					default:
						failures.Add(1)
					}
				}
				mu.Lock()
				latencies = append(latencies, local...)
				mu.Unlock()
			}()
		}
	}
	wg.Wait()
	total := time.Since(start)

	slices.Sort(latencies)
	overshoot := max(allowed.Load()-int64(limit), 0)

	fmt.Println("---- results ----")
	fmt.Printf("requests=%d allowed=%d rejected=%d store_errors=%d\n",
		len(latencies), allowed.Load(), rejected.Load(), failures.Load())
	fmt.Printf("limit=%d overshoot=%d (%.2f%%)\n",
		limit, overshoot, 100*float64(overshoot)/float64(limit))
	fmt.Printf("total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		total.Round(time.Millisecond),
		float64(len(latencies))/total.Seconds(),
		percentile(latencies, 50).Round(time.Microsecond),
		percentile(latencies, 95).Round(time.Microsecond),
		percentile(latencies, 99).Round(time.Microsecond),
	)
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	return sorted[(len(sorted)-1)*p/100]
}
