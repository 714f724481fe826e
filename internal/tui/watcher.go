// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/fsnotify/fsnotify"

	"github.com/go-preheat/preheat/internal/async"
)

// DefaultReloadDelay is how long config file events must settle before a
// reload fires. Editors that save through a rename emit several events per
// write, the debounce folds them into one.
const DefaultReloadDelay = 500 * time.Millisecond

// WatchConfig watches the directory holding path and invokes notify once
// changes to the file have settled for delay. The watch covers the whole
// directory because atomic saves replace the file, which would drop a watch
// placed on the file itself. The returned stop function releases the watch.
func WatchConfig(path string, delay time.Duration, notify func()) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if delay <= 0 {
		delay = DefaultReloadDelay
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	deb := async.NewDebouncer(delay, notify)
	base := filepath.Base(abs)

	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				log.Debugf("config changed: %s (%s)", event.Name, event.Op)
				deb.Trigger()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Debug("config watch error")
			}
		}
	}()

	log.Debugf("watching config: %s", abs)

	return func() {
		close(stop)
		_ = watcher.Close()
		<-done
		deb.Stop()
	}, nil
}
