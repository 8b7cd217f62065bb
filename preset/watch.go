package preset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/postfx"
)

// Reload retry limits. Editors often truncate a file before writing it,
// so the first read after an event may see a partial document.
const (
	reloadRetries     = 5
	reloadInitialWait = 20 * time.Millisecond
	reloadMaxWait     = 500 * time.Millisecond
)

func newWatcher() (*fsnotify.Watcher, error) {
	return fsnotify.NewWatcher()
}

// Watch calls fn with the parsed preset every time the file at path is
// written or re-created, until ctx is done. The directory is watched
// rather than the file so that editors that replace the file on save
// keep working. Files that still fail to parse after the retries are
// logged and skipped; fn is not called for them.
//
// Watch blocks. It returns nil when ctx is canceled.
func Watch(ctx context.Context, path string, fn func(*Preset)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("preset: watch: %w", err)
	}
	if _, err := FormatOf(abs); err != nil {
		return err
	}

	w, err := newWatcher()
	if err != nil {
		return fmt.Errorf("preset: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("preset: watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			p, err := reload(ctx, abs)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				postfx.Logger().Warn("preset: reload failed",
					slog.String("path", abs), slog.Any("error", err))
				continue
			}
			fn(p)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			postfx.Logger().Warn("preset: watcher error", slog.Any("error", err))
		}
	}
}

func reload(ctx context.Context, path string) (*Preset, error) {
	var p *Preset
	op := func() error {
		var err error
		p, err = Load(path)
		if errors.Is(err, ErrUnknownFormat) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reloadInitialWait
	b.MaxInterval = reloadMaxWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, reloadRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return p, nil
}
