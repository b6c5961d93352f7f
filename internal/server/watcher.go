package server

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceTime = 100 * time.Millisecond
)

// startWatcher watches the git directory, its branch refs and the top of the
// work tree. fsnotify is not recursive, so edits deeper in the work tree are
// only seen by the poll loop or through the index being rewritten.
func (s *Server) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := []string{s.gitDir, filepath.Join(s.gitDir, "refs", "heads")}
	if !s.bare {
		dirs = append(dirs, s.workDir)
	}
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	s.wg.Add(1)
	go s.watchLoop(watcher)

	s.log.Debug("watching repository for changes", "dirs", len(dirs))
	return nil
}

// watchLoop runs the debounced refresh itself so that Close, which waits for
// this goroutine, never returns while a refresh is still in flight.
func (s *Server) watchLoop(watcher *fsnotify.Watcher) {
	defer s.wg.Done()
	defer watcher.Close()

	debounce := time.NewTimer(debounceTime)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if s.shouldIgnoreEvent(event) {
				continue
			}

			s.log.Debug("change detected", "file", filepath.Base(event.Name), "op", event.Op.String())
			debounce.Reset(debounceTime)

		case <-debounce.C:
			if s.ctx.Err() == nil {
				s.safeRefresh("watch")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("watcher error", "err", err)
		}
	}
}

func (s *Server) shouldIgnoreEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	path := filepath.ToSlash(event.Name)

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	if strings.HasSuffix(base, ".lock") {
		return true
	}
	if strings.Contains(path, "/logs/") {
		return true
	}
	if event.Name == s.gitDir {
		return true
	}
	return false
}
