package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	EventTypeScanned   EventType = "scanned"
	EventTypeExtracted EventType = "extracted"
	EventTypeDuplicate EventType = "duplicate"
	EventTypeError     EventType = "error"
)

// Event reports the outcome of one input file. The counters are only set on
// EventTypeExtracted.
type Event struct {
	Type        EventType
	Path        string
	Err         error
	Emails      int
	Filtered    int
	Segments    int
	Attachments int
}

type Summary struct {
	Scanned     int
	Extracted   int
	Duplicates  int
	Errors      int
	Emails      int
	Filtered    int
	Segments    int
	Attachments int
	FailedFiles []string
	LastError   error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"files", s.Scanned,
		"extracted", s.Extracted,
		"duplicates", s.Duplicates,
		"errors", s.Errors,
		"emails", s.Emails,
		"filtered", s.Filtered,
		"segments", s.Segments,
		"attachments", s.Attachments,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.Apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	summary.FailedFiles = append([]string(nil), c.summary.FailedFiles...)
	c.mu.Unlock()
	return summary
}

func (c *Collector) Apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeExtracted:
		c.summary.Extracted++
		c.summary.Emails += evt.Emails
		c.summary.Filtered += evt.Filtered
		c.summary.Segments += evt.Segments
		c.summary.Attachments += evt.Attachments
	case EventTypeDuplicate:
		c.summary.Duplicates++
	case EventTypeError:
		c.summary.Errors++
		if evt.Path != "" {
			c.summary.FailedFiles = append(c.summary.FailedFiles, evt.Path)
		}
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

// Reporter logs a summary line once the event stream closes.
type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}
