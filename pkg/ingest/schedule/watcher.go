package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/telemetry/logging"
)

// InboxWatcher rebuilds edit kinds whose configured local source file
// changes. Bursts of events, such as a file copied in several writes, are
// debounced into one rebuild covering every kind touched.
type InboxWatcher struct {
	watcher   *fsnotify.Watcher
	rebuilder Rebuilder
	targets   map[string][]edits.Kind
	debounce  *Debouncer
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[edits.Kind]bool
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// NewInboxWatcher watches the local_path of each configured source. It
// fails when no source has a local path.
func NewInboxWatcher(sources config.SourcesConfig, refresh config.RefreshConfig, rebuilder Rebuilder) (*InboxWatcher, error) {
	targets := make(map[string][]edits.Kind)
	for kind, src := range map[edits.Kind]config.SourceConfig{
		edits.KindPTP: sources.PTP,
		edits.KindMUE: sources.MUE,
		edits.KindAOC: sources.AOC,
	} {
		if src.LocalPath == "" {
			continue
		}
		abs, err := filepath.Abs(src.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("resolving %s local path: %w", kind, err)
		}
		targets[abs] = append(targets[abs], kind)
	}
	if len(targets) == 0 {
		return nil, errors.New("no local source paths configured to watch")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &InboxWatcher{
		watcher:   w,
		rebuilder: rebuilder,
		targets:   targets,
		debounce:  NewDebouncer(refresh.Debounce),
		timeout:   refresh.BuildTimeout,
		logger:    slog.Default().With("component", "ingest.watcher"),
		pending:   make(map[edits.Kind]bool),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is done or Stop is called. Directories rather
// than files are watched so that replacing a file by rename is seen.
func (w *InboxWatcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()
	defer close(w.doneCh)

	dirs := make(map[string]bool)
	for path := range w.targets {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
	}
	w.logger.Info("inbox watcher started",
		"files", len(w.targets),
		"debounce", w.debounce.interval,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("inbox watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			kinds := w.match(event)
			if len(kinds) == 0 {
				continue
			}
			w.logger.Debug("source file changed",
				"path", event.Name,
				"op", event.Op.String(),
				"kinds", kinds,
			)
			w.enqueue(ctx, kinds)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("inbox watcher error", "error", err)
		}
	}
}

// match returns the kinds sourced from the event's file.
func (w *InboxWatcher) match(event fsnotify.Event) []edits.Kind {
	if event.Op == fsnotify.Chmod || event.Has(fsnotify.Remove) {
		return nil
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return nil
	}
	return w.targets[abs]
}

func (w *InboxWatcher) enqueue(ctx context.Context, kinds []edits.Kind) {
	w.mu.Lock()
	for _, k := range kinds {
		w.pending[k] = true
	}
	w.mu.Unlock()

	w.debounce.Trigger(func() { w.rebuild(ctx) })
}

func (w *InboxWatcher) rebuild(ctx context.Context) {
	w.mu.Lock()
	kinds := make([]edits.Kind, 0, len(w.pending))
	for k := range w.pending {
		kinds = append(kinds, k)
	}
	clear(w.pending)
	w.mu.Unlock()
	if len(kinds) == 0 {
		return
	}
	slices.Sort(kinds)

	ctx = logging.WithTrigger(ctx, "watch")
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	w.logger.InfoContext(ctx, "triggering rebuild for changed sources", "kinds", kinds)
	report, err := w.rebuilder.Rebuild(ctx, kinds...)
	if err != nil {
		w.logger.ErrorContext(ctx, "file-triggered rebuild failed", "kinds", kinds, "error", err)
		return
	}
	w.logger.InfoContext(ctx, "file-triggered rebuild completed",
		"build_id", report.BuildID,
		"rows", report.Rows(),
	)
}

// Stop stops watching and cancels any pending rebuild. It is safe to call
// more than once.
func (w *InboxWatcher) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		running := w.running
		w.mu.Unlock()

		close(w.stopCh)
		if running {
			<-w.doneCh
		}
		w.debounce.Stop()

		if err := w.watcher.Close(); err != nil {
			w.stopErr = fmt.Errorf("failed to close watcher: %w", err)
		}
	})
	return w.stopErr
}
