package discovery

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"github.com/artpar/sesh/internal/logging"
	"github.com/artpar/sesh/internal/paths"
)

// Watch runs fn once immediately and again every time the sessions
// directory changes, until ctx is cancelled. This backs `sesh list
// --watch` with live updates instead of polling.
func Watch(ctx context.Context, fn func([]Session)) error {
	sessions, err := Scan(ctx)
	if err != nil {
		return err
	}
	fn(sessions)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(paths.SessionsDir()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("fsnotify error", logging.F("error", err.Error()))
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			sessions, err := Scan(ctx)
			if err != nil {
				continue
			}
			fn(sessions)
		}
	}
}
