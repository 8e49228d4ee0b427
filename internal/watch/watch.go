// Package watch rebuilds component source when its file is saved.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/cogbench/cogbench/internal/logging"
)

// DefaultDebounce batches the bursts of events editors emit for one save.
const DefaultDebounce = 300 * time.Millisecond

// Source watches a single file. OnChange receives the file contents once at
// start and again after each burst of writes settles.
type Source struct {
	Path     string
	Debounce time.Duration
	Logger   *zap.Logger
	OnChange func(ctx context.Context, text string)
}

// Run blocks until ctx is cancelled or the watcher fails.
func (s *Source) Run(ctx context.Context) error {
	if s.OnChange == nil {
		return fmt.Errorf("watch: OnChange is required")
	}
	logger := logging.OrNop(s.Logger)
	debounce := s.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	path, err := filepath.Abs(s.Path)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if info, err := os.Stat(path); err != nil {
		return fmt.Errorf("watch: %w", err)
	} else if info.IsDir() {
		return fmt.Errorf("watch: %s is a directory", path)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	// Editors often save by renaming a temp file over the original, which
	// drops a watch on the file itself. Watching the directory survives that.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	logger.Info("watching source", zap.String("path", path), zap.Duration("debounce", debounce))

	s.fire(ctx, logger, path)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				logger.Debug("ignoring event", zap.String("op", event.Op.String()))
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))

		case <-timerC:
			timerC = nil
			s.fire(ctx, logger, path)
		}
	}
}

func (s *Source) fire(ctx context.Context, logger *zap.Logger, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Mid-save the file can be briefly missing; the next event retries.
		logger.Warn("read failed", zap.String("path", path), zap.Error(err))
		return
	}
	s.OnChange(ctx, string(data))
}
