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
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	permgate "github.com/permgate/permgate"
	"github.com/permgate/permgate/node"
)

func main() {
	var (
		users       = flag.Int("users", 50000, "number of identities to seed")
		groups      = flag.Int("groups", 64, "number of groups to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 500000, "operations per phase (check + mutate)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "prm", "redis key prefix")
	)
	flag.Parse()

	if *users <= 0 || *groups <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, groups, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	primary, err := permgate.NewFileSource("file", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "file source: %v\n", err)
		os.Exit(1)
	}

	engine, err := permgate.New().
		WithSource(primary).
		WithSource(permgate.NewRedisSource(client, "redis", *prefix)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	groupNames := make([]string, *groups)
	for i := range groupNames {
		groupNames[i] = fmt.Sprintf("group-%d", i)
		nodes := node.NewSet(
			fmt.Sprintf("area.%d.*", i),
			fmt.Sprintf("-area.%d.admin", i),
		)
		if err := engine.AddGroupPermissions(ctx, groupNames[i], nodes); err != nil {
			fmt.Fprintf(os.Stderr, "seed group: %v\n", err)
			os.Exit(1)
		}
	}

	ids := make([]permgate.Identity, *users)
	fmt.Printf("seeding %d identities across %d groups...\n", *users, *groups)
	startSeed := time.Now()
	for i := range ids {
		ids[i] = uuid.New()
		if err := engine.AddUserToGroup(ctx, ids[i], groupNames[i%len(groupNames)]); err != nil {
			fmt.Fprintf(os.Stderr, "seed membership: %v\n", err)
			os.Exit(1)
		}
		if i%7 == 0 {
			direct := node.NewSet(fmt.Sprintf("user.%d.special", i))
			if err := engine.AddUserPermissions(ctx, ids[i], direct); err != nil {
				fmt.Fprintf(os.Stderr, "seed direct: %v\n", err)
				os.Exit(1)
			}
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	checkStats := runCheckPhase(ctx, engine, ids, groupNames, *ops, *concurrency)
	mutateStats := runMutatePhase(ctx, engine, ids, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("check", checkStats)
	printStats("mutate", mutateStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine counters: grant=%d deny=%d defaulted=%d noop=%d events=%d\n",
		snap.Counters[permgate.MetricCheckGrant],
		snap.Counters[permgate.MetricCheckDeny],
		snap.Counters[permgate.MetricCheckDefaulted],
		snap.Counters[permgate.MetricMutationNoOp],
		snap.Counters[permgate.MetricEventsEmitted],
	)
}

func runCheckPhase(ctx context.Context, engine *permgate.Engine, ids []permgate.Identity, groupNames []string, ops, concurrency int) phaseStats {
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
				idx := r.Intn(len(ids))
				perm := fmt.Sprintf("area.%d.build", r.Intn(len(groupNames)))
				t0 := time.Now()
				_, err := engine.HasPermission(ctx, ids[idx], perm, false)
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

func runMutatePhase(ctx context.Context, engine *permgate.Engine, ids []permgate.Identity, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(ids))
				nodes := node.NewSet(fmt.Sprintf("churn.%d", i%512))

				var err error
				t0 := time.Now()
				if i%2 == 0 {
					err = engine.AddUserPermissions(ctx, ids[idx], nodes)
				} else {
					err = engine.RemoveUserPermissions(ctx, ids[idx], nodes)
				}
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
