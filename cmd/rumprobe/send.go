package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	format "finsite/pkg/formats/rum"
	"finsite/pkg/logger"
	"finsite/pkg/rum"
	"finsite/pkg/vitals"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	profileGood = "good"
	profilePoor = "poor"
)

type probeOptions struct {
	Endpoint  string
	Views     int
	BatchSize int
	Profile   string
	Seed      uint64
	URL       string
	UserAgent string
	Timeout   time.Duration
	Beacon    bool
}

type probeResult struct {
	Views   int
	Metrics int
	Alerts  []vitals.Alert
}

// scriptedSource is a vitals.EntrySource fed from a fixed list of entries.
type scriptedSource struct {
	mu        sync.Mutex
	observers map[vitals.EntryType][]func(vitals.Entry)
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{observers: make(map[vitals.EntryType][]func(vitals.Entry))}
}

func (s *scriptedSource) Observe(t vitals.EntryType, fn func(vitals.Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[t] = append(s.observers[t], fn)
	return nil
}

func (s *scriptedSource) replay(entries []vitals.Entry) {
	for _, e := range entries {
		s.mu.Lock()
		fns := append([]func(vitals.Entry){}, s.observers[e.Type]...)
		s.mu.Unlock()
		for _, fn := range fns {
			fn(e)
		}
	}
}

// syntheticEntries builds the timeline of one page view. The poor profile
// lands every vital past its budget.
func syntheticEntries(profile string, rng *rand.Rand) []vitals.Entry {
	jitter := func(base, spread float64) float64 {
		return base + rng.Float64()*spread
	}

	lcp, fid, shift, fcp, inp, ttfb := 1200.0, 40.0, 0.02, 800.0, 120.0, 250.0
	if profile == profilePoor {
		lcp, fid, shift, fcp, inp, ttfb = 4800, 350, 0.15, 3200, 600, 1900
	}

	requestStart := jitter(20, 10)
	firstInput := jitter(1500, 500)
	return []vitals.Entry{
		{Type: vitals.EntryNavigation, Name: "navigation", RequestStart: requestStart, ResponseStart: requestStart + jitter(ttfb, ttfb/10)},
		{Type: vitals.EntryPaint, Name: "first-contentful-paint", StartTime: jitter(fcp, fcp/10)},
		{Type: vitals.EntryLargestContentfulPaint, StartTime: jitter(lcp, lcp/10)},
		{Type: vitals.EntryLayoutShift, Value: jitter(shift, shift/5)},
		{Type: vitals.EntryLayoutShift, Value: jitter(shift, shift/5)},
		{Type: vitals.EntryLayoutShift, Value: 0.5, HadRecentInput: true},
		{Type: vitals.EntryFirstInput, StartTime: firstInput, ProcessingStart: firstInput + jitter(fid, fid/10)},
		{Type: vitals.EntryEvent, Duration: jitter(inp, inp/10)},
	}
}

func navigationFor(entries []vitals.Entry) format.NavigationTiming {
	var nt format.NavigationTiming
	for _, e := range entries {
		if e.Type == vitals.EntryNavigation {
			nt.TTFB = e.ResponseStart - e.RequestStart
			nt.DNSLookup = e.RequestStart / 4
			nt.TCPConnect = e.RequestStart / 2
			nt.ResponseTime = nt.TTFB / 5
			nt.DOMInteractive = e.ResponseStart + 400
			nt.DOMContentLoaded = e.ResponseStart + 600
			nt.LoadComplete = e.ResponseStart + 1100
		}
	}
	return nt
}

func runProbe(ctx context.Context, opts probeOptions, log *zap.Logger) (probeResult, error) {
	if opts.Views <= 0 {
		return probeResult{}, fmt.Errorf("views must be > 0")
	}
	if opts.Profile != profileGood && opts.Profile != profilePoor {
		return probeResult{}, fmt.Errorf("unknown profile %q", opts.Profile)
	}

	transport := rum.NewHTTPTransport(opts.Endpoint, &http.Client{Timeout: opts.Timeout}, log)
	buffer := rum.New(rum.Options{
		BatchSize:     opts.BatchSize,
		FlushInterval: time.Hour,
		Transport:     transport,
		Logger:        log,
	})

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	var (
		mu     sync.Mutex
		result probeResult
	)
	for i := 0; i < opts.Views; i++ {
		if err := ctx.Err(); err != nil {
			buffer.Close()
			return result, err
		}

		h := buffer.StartView(rum.PageView{
			URL:        opts.URL,
			UserAgent:  opts.UserAgent,
			Viewport:   format.Viewport{Width: 1440, Height: 900},
			Connection: &format.Connection{EffectiveType: "4g", Downlink: 10, RTT: 50},
		})
		sink := buffer.Reporter(h)

		source := newScriptedSource()
		monitor := vitals.NewMonitor(source, vitals.MonitorOptions{
			URL:       opts.URL,
			UserAgent: opts.UserAgent,
			Budget:    vitals.DefaultBudget(),
			Logger:    log,
			OnAlert: func(a vitals.Alert) {
				mu.Lock()
				result.Alerts = append(result.Alerts, a)
				mu.Unlock()
			},
			Reporter: vitals.ReporterFunc(func(m vitals.Metric) {
				mu.Lock()
				result.Metrics++
				mu.Unlock()
				sink.Report(m)
			}),
		})
		monitor.Init()

		entries := syntheticEntries(opts.Profile, rng)
		source.replay(entries)
		buffer.RecordNavigation(h, navigationFor(entries))
		buffer.RecordResources(h, format.Resources{
			Count:        float64(12 + rng.IntN(20)),
			TransferSize: float64(200_000 + rng.Int64N(400_000)),
			DecodedSize:  float64(600_000 + rng.Int64N(900_000)),
		})
		result.Views++
	}

	if opts.Beacon {
		buffer.Close()
		transport.Wait()
		return result, nil
	}

	err := buffer.Flush(ctx)
	buffer.Close()
	transport.Wait()
	if err != nil {
		return result, fmt.Errorf("failed to deliver RUM batch: %w", err)
	}
	return result, nil
}

func printResult(w io.Writer, res probeResult) {
	fmt.Fprintf(w, "views: %d, metrics: %d, budget alerts: %d\n", res.Views, res.Metrics, len(res.Alerts))
	for _, a := range res.Alerts {
		fmt.Fprintf(w, "  %-5s %10.3f > %-8.3f %s\n", a.Metric, a.Value, a.Threshold, a.Severity)
	}
}

func sendCommand() *cobra.Command {
	var (
		opts     probeOptions
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send synthetic page views to the ingestion endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := runProbe(ctx, opts, log)
			printResult(cmd.OutOrStdout(), res)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "http://localhost:8080/api/rum", "RUM ingestion URL")
	cmd.Flags().IntVar(&opts.Views, "views", 1, "number of page views to simulate")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", rum.DefaultBatchSize, "records per batch")
	cmd.Flags().StringVar(&opts.Profile, "profile", profileGood, "synthetic profile: good or poor")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed for jitter")
	cmd.Flags().StringVar(&opts.URL, "page-url", "https://example.com/", "page URL stamped on records")
	cmd.Flags().StringVar(&opts.UserAgent, "user-agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36", "user agent stamped on records")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "HTTP timeout")
	cmd.Flags().BoolVar(&opts.Beacon, "beacon", false, "deliver the final flush as a beacon")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level")

	return cmd
}
