package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/extensivelabs/agentecs-viz/internal/core/events/bus"
	"github.com/extensivelabs/agentecs-viz/internal/core/protocol"
	"github.com/extensivelabs/agentecs-viz/internal/core/transport"
	"github.com/extensivelabs/agentecs-viz/internal/core/world"
	"github.com/extensivelabs/agentecs-viz/internal/injector"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	PauseOnError   bool
	Severities     []string
	MaxSnapshots   int
	Duration       time.Duration
	StatusInterval time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to a world server and print what changes",
		Long: `Connect to a world server and print one line per snapshot with the number of
new, changed and removed entities, plus connection, playback and error events.

Examples:
  agentecs-viz watch --url ws://localhost:8000/ws
  agentecs-viz watch -c viz.yaml --pause-on-error
  agentecs-viz watch --url quic://sim.internal:4433 --max-snapshots 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.PauseOnError, "pause-on-error", false, "pause the simulation when an error event arrives")
	cmd.Flags().StringSliceVar(&opts.Severities, "severity", nil, "only report error events with these severities (default all)")
	cmd.Flags().IntVar(&opts.MaxSnapshots, "max-snapshots", 0, "exit after this many snapshots (0 = no limit)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "exit after this long (0 = until interrupted)")
	cmd.Flags().DurationVar(&opts.StatusInterval, "status-interval", 10*time.Second, "how often to print a status line (0 = never)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	app, cleanup, err := injector.InitializeApp(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	printer := &watchPrinter{out: out, store: app.Store}

	var snapshots atomic.Int64
	subs := []struct {
		eventType string
		handler   bus.EventHandler
		filters   []bus.EventFilter
	}{
		{world.EventSnapshot, func(ev bus.Event) error {
			printer.snapshot(ev.Data().(world.SnapshotInstalled))
			if n := snapshots.Add(1); opts.MaxSnapshots > 0 && n >= int64(opts.MaxSnapshots) {
				cancel()
			}
			return nil
		}, nil},
		{world.EventTransportState, func(ev bus.Event) error {
			out.printf("connection: %s\n", ev.Data().(transport.ConnectionState))
			return nil
		}, nil},
		{world.EventPlayback, func(ev bus.Event) error {
			out.printf("mode: %s\n", ev.Data().(world.PlaybackMode))
			return nil
		}, nil},
		{world.EventError, func(ev bus.Event) error {
			out.printf("server error: %s\n", ev.Data().(string))
			return nil
		}, nil},
		{world.EventErrorEvent, func(ev bus.Event) error {
			e := ev.Data().(protocol.ErrorEvent)
			out.printf("error at tick %d on entity %d [%s]: %s\n", e.Tick, e.EntityID, e.Severity, e.Message)
			if opts.PauseOnError && !app.Store.IsPaused() {
				app.Store.Pause()
			}
			return nil
		}, severityFilters(opts.Severities)},
	}
	for _, s := range subs {
		sub, err := app.Bus.Subscribe(s.eventType, s.handler, s.filters...)
		if err != nil {
			return err
		}
		defer func() { _ = app.Bus.Unsubscribe(sub) }()
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Store.Connect(ctx)
		<-ctx.Done()
		app.Store.Disconnect()
		return nil
	})

	if opts.Duration > 0 {
		g.Go(func() error {
			select {
			case <-time.After(opts.Duration):
				cancel()
			case <-ctx.Done():
			}
			return nil
		})
	}

	if opts.StatusInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.StatusInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printer.status()
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	printer.status()
	return nil
}

// severityFilters keeps error events whose severity is listed. An empty
// list keeps everything.
func severityFilters(severities []string) []bus.EventFilter {
	if len(severities) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(severities))
	for _, s := range severities {
		allowed[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return []bus.EventFilter{func(ev bus.Event) bool {
		e, ok := ev.Data().(protocol.ErrorEvent)
		if !ok {
			return false
		}
		_, keep := allowed[strings.ToLower(e.Severity)]
		return keep
	}}
}

type watchPrinter struct {
	out   *lockedWriter
	store *world.Store
}

func (p *watchPrinter) snapshot(s world.SnapshotInstalled) {
	p.out.printf("tick %d: %d entities (%d new, %d changed, %d removed) digest=%016x\n",
		s.Tick, s.EntityCount, len(s.New), len(s.Changed), len(s.Removed), s.Digest)
}

func (p *watchPrinter) status() {
	r, ok := p.store.TickRange()
	rangeText := "none"
	if ok {
		rangeText = fmt.Sprintf("[%d, %d]", r.Min, r.Max)
	}
	p.out.printf("status: %s mode=%s tick=%d range=%s entities=%d errors=%d\n",
		p.store.ConnectionState(), p.store.PlaybackMode(), p.store.Tick(), rangeText,
		p.store.EntityCount(), len(p.store.ErrorEvents()))
}

// lockedWriter serializes output from bus handlers and the status loop.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, format, args...)
}
