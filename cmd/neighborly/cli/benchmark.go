package cli

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/config"
)

func newBenchmarkCmd() *cobra.Command {
	var (
		duration    time.Duration
		concurrency int
		policyFile  string
		swapEvery   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Benchmark authorization decision throughput",
		Long: `Run concurrent guard evaluations against the role-permission table for the given
duration and report decisions per second, latency percentiles and memory. With
--swap-every the table is replaced concurrently to measure reads during policy reloads.`,
		Example: `  neighborly benchmark --duration 10s --concurrency 8
  neighborly benchmark --policy ./policy.yaml --swap-every 50ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(cmd.OutOrStdout(), duration, concurrency, policyFile, swapEvery)
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "Test duration")
	cmd.Flags().IntVar(&concurrency, "concurrency", runtime.GOMAXPROCS(0), "Number of concurrent workers")
	cmd.Flags().StringVar(&policyFile, "policy", "", "Policy file to benchmark (default: built-in table)")
	cmd.Flags().DurationVar(&swapEvery, "swap-every", 0, "Swap the table at this interval while evaluating (0 disables)")

	return cmd
}

// benchCase is one (principal, requirement) pair evaluated by the workers.
type benchCase struct {
	user *authz.User
	need authz.Requirement
}

// benchCases covers every role against every permission and every exact-role
// requirement, plus anonymous callers.
func benchCases() []benchCase {
	roles := authz.Roles()
	perms := authz.Permissions()

	var needs []authz.Requirement
	needs = append(needs, authz.Requirement{})
	for _, p := range perms {
		needs = append(needs, authz.Requirement{Permission: p})
	}
	for _, r := range roles {
		needs = append(needs, authz.Requirement{Role: r})
	}
	needs = append(needs, authz.Requirement{Role: authz.RoleAdmin, Permission: authz.PermViewUsers})

	users := []*authz.User{nil}
	for i, r := range roles {
		users = append(users, &authz.User{ID: int64(i + 1), Role: r})
	}

	cases := make([]benchCase, 0, len(users)*len(needs))
	for _, u := range users {
		for _, n := range needs {
			cases = append(cases, benchCase{user: u, need: n})
		}
	}
	return cases
}

// memStats captures a snapshot of memory statistics for reporting.
type memStats struct {
	HeapAlloc uint64
	Sys       uint64
}

func captureMemStats() memStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return memStats{HeapAlloc: m.HeapAlloc, Sys: m.Sys}
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// latencySample keeps one in every latencySample timings; a single
// evaluation is too fast to time individually without distorting the run.
const latencySample = 64

func runBenchmark(out io.Writer, duration time.Duration, concurrency int, policyFile string, swapEvery time.Duration) error {
	if concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	table := authz.DefaultTable()
	source := "builtin"
	if policyFile != "" {
		t, err := config.LoadPolicy(policyFile)
		if err != nil {
			return err
		}
		table, source = t, policyFile
	}
	holder := authz.NewHolder(table)
	cases := benchCases()

	fmt.Fprintln(out, "Neighborly Authorization Benchmark")
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(out, "Policy: %s | Cases: %d\n", source, len(cases))
	fmt.Fprintf(out, "Duration: %s | Concurrency: %d", duration, concurrency)
	if swapEvery > 0 {
		fmt.Fprintf(out, " | Swap every: %s", swapEvery)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(out)

	memBefore := captureMemStats()

	var (
		total     atomic.Int64
		allowed   atomic.Int64
		swaps     atomic.Int64
		latencies = make([]time.Duration, 0, 100000)
		latencyMu sync.Mutex
		byReason  [4]atomic.Int64
	)

	done := make(chan struct{})
	var swapWG sync.WaitGroup
	if swapEvery > 0 {
		swapWG.Add(1)
		go func() {
			defer swapWG.Done()
			ticker := time.NewTicker(swapEvery)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					holder.Swap(authz.MustTable(table.Assignment()))
					swaps.Add(1)
				}
			}
		}()
	}

	deadline := time.Now().Add(duration)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			local := make([]time.Duration, 0, 4096)
			var n, ok int64
			var reasons [4]int64
			for i := offset; time.Now().Before(deadline); i++ {
				c := cases[i%len(cases)]
				var d authz.Decision
				if i%latencySample == 0 {
					start := time.Now()
					d = holder.Load().Evaluate(c.user, c.need)
					local = append(local, time.Since(start))
				} else {
					d = holder.Load().Evaluate(c.user, c.need)
				}
				n++
				if d.Allowed {
					ok++
				}
				if int(d.Reason) < len(reasons) {
					reasons[d.Reason]++
				}
			}
			total.Add(n)
			allowed.Add(ok)
			for r, cnt := range reasons {
				byReason[r].Add(cnt)
			}
			latencyMu.Lock()
			latencies = append(latencies, local...)
			latencyMu.Unlock()
		}(w * 7)
	}

	wg.Wait()
	close(done)
	swapWG.Wait()

	memAfter := captureMemStats()

	n := total.Load()
	fmt.Fprintln(out, "Results")
	fmt.Fprintln(out, "-------")
	fmt.Fprintf(out, "  Decisions:      %d\n", n)
	fmt.Fprintf(out, "  Per second:     %.0f\n", float64(n)/duration.Seconds())
	fmt.Fprintf(out, "  Allowed:        %d\n", allowed.Load())
	for _, r := range []authz.Reason{authz.ReasonUnauthenticated, authz.ReasonInsufficientPermission, authz.ReasonRoleMismatch} {
		fmt.Fprintf(out, "  %-15s %d\n", r.String()+":", byReason[r].Load())
	}
	if swapEvery > 0 {
		fmt.Fprintf(out, "  Table swaps:    %d\n", swaps.Load())
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Latency (1 in %d sampled)\n", latencySample)
		fmt.Fprintln(out, "-------")
		fmt.Fprintf(out, "  p50:            %s\n", latencies[len(latencies)*50/100])
		fmt.Fprintf(out, "  p95:            %s\n", latencies[len(latencies)*95/100])
		fmt.Fprintf(out, "  p99:            %s\n", latencies[len(latencies)*99/100])
		fmt.Fprintf(out, "  max:            %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Memory")
	fmt.Fprintln(out, "------")
	fmt.Fprintf(out, "  Heap before:    %s\n", formatBytes(memBefore.HeapAlloc))
	fmt.Fprintf(out, "  Heap after:     %s\n", formatBytes(memAfter.HeapAlloc))
	fmt.Fprintf(out, "  Sys before:     %s\n", formatBytes(memBefore.Sys))
	fmt.Fprintf(out, "  Sys after:      %s\n", formatBytes(memAfter.Sys))

	return nil
}
