// Command sessionkit-loadtest seeds a session store and drives concurrent
// read and rotation traffic against it, reporting latency percentiles. By
// default it runs self-contained on miniredis; point it at a real Redis with
// -redis-addr to measure network costs.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sessionkit/sessionkit"
	"github.com/sessionkit/sessionkit/store"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (read + rotate)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		collection  = flag.String("collection", store.DefaultCollection, "session key namespace")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Println("using embedded miniredis")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()
	if cleanup != nil {
		defer cleanup()
	}

	cfg := sessionkit.DefaultConfig()
	cfg.Session.Collection = *collection
	cfg.Session.DefaultTTL = time.Hour

	coord, err := sessionkit.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build coordinator: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("seeding %d sessions...\n", *sessions)
	ids := make([]string, *sessions)
	var mu sync.Mutex

	start := time.Now()
	runWorkers(*concurrency, *sessions, func(i int) time.Duration {
		opStart := time.Now()
		id, err := coord.Create(ctx, store.UserPayload{ID: fmt.Sprintf("user-%d", i)}, sessionkit.CreateOptions{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed create: %v\n", err)
			os.Exit(1)
		}
		ids[i] = id
		return time.Since(opStart)
	})
	fmt.Printf("seeded in %v\n\n", time.Since(start))

	fmt.Printf("read phase: %d ops across %d workers\n", *ops, *concurrency)
	readLatencies := runPhase(*concurrency, *ops, func(r *rand.Rand) time.Duration {
		mu.Lock()
		id := ids[r.Intn(len(ids))]
		mu.Unlock()

		opStart := time.Now()
		if _, err := coord.Read(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			os.Exit(1)
		}
		return time.Since(opStart)
	})
	report("read", readLatencies)

	fmt.Printf("\nrotate phase: %d ops across %d workers\n", *ops, *concurrency)
	rotateLatencies := runPhase(*concurrency, *ops, func(r *rand.Rand) time.Duration {
		mu.Lock()
		idx := r.Intn(len(ids))
		id := ids[idx]
		mu.Unlock()

		opStart := time.Now()
		newID, err := coord.Rotate(ctx, id, store.UserPayload{}, time.Time{})
		elapsed := time.Since(opStart)
		if err != nil {
			// A worker racing on the same slot loses its id to the
			// winner's rotation; that is expected traffic, not a failure.
			return elapsed
		}

		mu.Lock()
		ids[idx] = newID
		mu.Unlock()
		return elapsed
	})
	report("rotate", rotateLatencies)

	snap := coord.Metrics()
	fmt.Printf("\ncounters: created=%d read_hit=%d rotated=%d read_miss=%d store_error=%d\n",
		snap["session_created"], snap["read_hit"], snap["rotated"], snap["read_miss"], snap["store_error"])
}

// runWorkers fans index-addressed work across n goroutines.
func runWorkers(workers, total int, op func(i int) time.Duration) {
	var next atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= total {
					return
				}
				op(i)
			}
		}()
	}
	wg.Wait()
}

// runPhase drives total operations across workers and collects latencies.
func runPhase(workers, total int, op func(r *rand.Rand) time.Duration) []time.Duration {
	latencies := make([]time.Duration, total)
	var next atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for {
				i := int(next.Add(1)) - 1
				if i >= total {
					return
				}
				latencies[i] = op(r)
			}
		}(int64(w) + 1)
	}
	wg.Wait()

	return latencies
}

func report(phase string, latencies []time.Duration) {
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, l := range sorted {
		total += l
	}

	pct := func(p float64) time.Duration {
		idx := int(float64(len(sorted)-1) * p)
		return sorted[idx]
	}

	fmt.Printf("%s: avg=%v p50=%v p95=%v p99=%v max=%v\n",
		phase,
		total/time.Duration(len(sorted)),
		pct(0.50), pct(0.95), pct(0.99),
		sorted[len(sorted)-1],
	)
}
