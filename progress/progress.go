package progress

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/mail-extract/stats"
)

// Bar tracks finished files.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	done    int
	mu      sync.Mutex
	enabled bool
}

// New creates a progress bar when logLevel is "info" and there is more than
// one file. A nil writer means stdout.
func New(total int, logLevel string, w io.Writer) *Bar {
	bar := &Bar{
		total:   total,
		enabled: logLevel == "info" && total > 1,
	}
	if !bar.enabled {
		return bar
	}

	printer := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Extracting")
	if w != nil {
		printer = printer.WithWriter(w)
	}

	pterm.Info.Printf("Files to process: %d\n", total)
	pb, err := printer.Start()
	if err != nil {
		bar.enabled = false
		return bar
	}
	bar.pb = pb
	return bar
}

// Enabled reports whether the bar is drawn.
func (b *Bar) Enabled() bool {
	return b != nil && b.enabled && b.pb != nil
}

// Done returns how many files finished so far.
func (b *Bar) Done() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Update advances the bar once per finished file.
func (b *Bar) Update(evt stats.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeScanned:
		if b.Enabled() && evt.Path != "" {
			name := filepath.Base(evt.Path)
			if len(name) > 40 {
				name = name[:37] + "..."
			}
			b.pb.UpdateTitle("Extracting " + name)
		}
		return
	case stats.EventTypeError:
		if b.Enabled() && evt.Err != nil {
			pterm.Error.Printf("%s: %v\n", filepath.Base(evt.Path), evt.Err)
		}
	case stats.EventTypeExtracted, stats.EventTypeDuplicate:
	default:
		return
	}

	b.done++
	if b.Enabled() {
		b.pb.Increment()
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.Enabled() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	_, _ = b.pb.Stop()
}

// Subscriber updates the bar from the event stream and stops it when the
// stream closes.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	defer b.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}

// ProgressReporter pairs the bar with a pterm summary section.
type ProgressReporter struct {
	bar       *Bar
	collector *stats.Collector
	started   time.Time
}

// NewProgressReporter subscribes the bar and the summary printer when the bar
// is enabled.
func NewProgressReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *ProgressReporter {
	reporter := &ProgressReporter{
		bar:       bar,
		collector: stats.NewCollector(),
		started:   time.Now(),
	}

	if bar.Enabled() {
		stream.SubscribeStats("progress-bar", bar.Subscriber)
		stream.SubscribeStats("progress-stats", reporter.collectStats)
	} else if logger != nil {
		logger.Debug("progress bar disabled")
	}

	return reporter
}

func (pr *ProgressReporter) collectStats(ctx context.Context, events <-chan stats.Event) error {
	pr.collector.Run(ctx, events)
	PrintSummary(pr.collector.Snapshot(), time.Since(pr.started))
	return nil
}

// PrintSummary renders summary as a pterm section.
func PrintSummary(summary stats.Summary, duration time.Duration) {
	pterm.Println()
	pterm.DefaultSection.Println("Summary")
	pterm.Info.Printf("Duration: %v\n", duration.Round(time.Millisecond))
	pterm.Info.Printf("Files: %d (extracted %d, skipped %d, failed %d)\n",
		summary.Scanned, summary.Extracted, summary.Duplicates, summary.Errors)
	pterm.Info.Printf("Emails: %d (filtered %d)\n", summary.Emails, summary.Filtered)
	pterm.Info.Printf("Segments: %d\n", summary.Segments)
	pterm.Info.Printf("Attachments: %d\n", summary.Attachments)
	for _, path := range summary.FailedFiles {
		pterm.Error.Printf("Failed: %s\n", path)
	}
}
