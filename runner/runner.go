package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dhcgn/mail-extract/config"
	"github.com/dhcgn/mail-extract/extract"
	"github.com/dhcgn/mail-extract/state"
	"github.com/dhcgn/mail-extract/stats"
)

var ErrPanic = errors.New("panic while processing file")

// Processor extracts a single input file.
type Processor interface {
	Process(ctx context.Context, path string) (extract.Result, error)
}

type StageFunc func(context.Context) error

// Runner fans input files out to a pool of workers. A failing file is
// logged and counted; it never stops the other files.
type Runner struct {
	cfg       config.Config
	logger    *slog.Logger
	processor Processor

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	paths       chan string
	subscribers []chan stats.Event
	collector   *stats.Collector

	tracker *state.FileTracker

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu   sync.Mutex
	err     error
	fileErr error

	closeEventsOnce sync.Once
	since           time.Time
}

func New(ctx context.Context, cfg config.Config, processor Processor, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tracker, err := state.NewFileTracker(cfg.StateDir, !cfg.DryRun)
	if err != nil {
		return nil, fmt.Errorf("state tracker: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	return &Runner{
		cfg:       cfg,
		logger:    logger,
		processor: processor,
		parent:    ctx,
		ctx:       runCtx,
		cancel:    cancel,
		paths:     make(chan string, 32),
		collector: stats.NewCollector(),
		tracker:   tracker,
	}, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Tracker() state.Tracker {
	return r.tracker
}

// SubscribeStats registers fn to receive every event. Each subscriber gets
// its own channel, closed when all workers are done. Subscribe before Run.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	events := make(chan stats.Event, 128)
	r.subscribers = append(r.subscribers, events)

	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) EmitEvent(evt stats.Event) {
	r.collector.Apply(evt)
	for _, events := range r.subscribers {
		select {
		case <-r.ctx.Done():
			return
		case events <- evt:
		}
	}
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

// Run processes paths and blocks until every file is done or the context is
// cancelled. Per-file failures only surface as an error when the input is a
// single file.
func (r *Runner) Run(paths []string) (stats.Summary, error) {
	r.since = time.Now()

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}

	r.AddStage("producer", func(ctx context.Context) error {
		return r.produce(ctx, paths)
	})
	for i := 0; i < workers; i++ {
		r.AddStage(fmt.Sprintf("worker-%d", i), r.work)
	}

	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	if err := r.tracker.Close(); err != nil {
		r.fail(err)
	}
	r.cancel()

	summary := r.collector.Snapshot()
	duration := time.Since(r.since)

	r.errMu.Lock()
	err := r.err
	if err == nil && !r.cfg.InputIsDir {
		err = r.fileErr
	}
	r.errMu.Unlock()
	if err == nil {
		err = r.parent.Err()
	}

	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return summary, err
	}

	r.logger.Info("pipeline completed", "duration", duration)
	return summary, nil
}

func (r *Runner) produce(ctx context.Context, paths []string) error {
	defer close(r.paths)
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.paths <- path:
		}
	}
	return nil
}

func (r *Runner) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-r.paths:
			if !ok {
				return nil
			}
			r.handle(ctx, path)
		}
	}
}

func (r *Runner) handle(ctx context.Context, path string) {
	started := time.Now()
	r.EmitEvent(stats.Event{Type: stats.EventTypeScanned, Path: path})

	hash, err := state.HashFile(path)
	if err != nil {
		r.fileFailed(ctx, path, err)
		return
	}
	if !r.cfg.Force && r.tracker.AlreadyProcessed(hash) {
		r.logger.Info("skipping already extracted file", "file", path, "hash", hash)
		r.EmitEvent(stats.Event{Type: stats.EventTypeDuplicate, Path: path})
		return
	}

	result, err := r.process(ctx, path)
	if err != nil {
		r.fileFailed(ctx, path, err)
		return
	}

	if !r.cfg.DryRun {
		if err := r.tracker.MarkProcessed(hash, path); err != nil {
			r.logger.Warn("record extracted file", "file", path, "err", err)
		}
	}

	r.EmitEvent(stats.Event{
		Type:        stats.EventTypeExtracted,
		Path:        path,
		Emails:      result.Emails,
		Filtered:    result.Filtered,
		Segments:    result.Segments,
		Attachments: result.Attachments,
	})
	r.logger.Info("file extracted",
		"file", path,
		"emails", result.Emails,
		"filtered", result.Filtered,
		"segments", result.Segments,
		"attachments", result.Attachments,
		"duration", time.Since(started),
	)
}

func (r *Runner) process(ctx context.Context, path string) (result extract.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w %s: %v", ErrPanic, filepath.Base(path), rec)
		}
	}()
	return r.processor.Process(ctx, path)
}

func (r *Runner) fileFailed(ctx context.Context, path string, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		r.logger.Debug("file interrupted", "file", path, "err", err)
		return
	}

	r.logger.Error("file failed", "file", path, "err", err)
	r.EmitEvent(stats.Event{Type: stats.EventTypeError, Path: path, Err: err})

	r.errMu.Lock()
	if r.fileErr == nil {
		r.fileErr = err
	}
	r.errMu.Unlock()
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		for _, events := range r.subscribers {
			close(events)
		}
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
