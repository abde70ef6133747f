package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// LoadFile reads a token file. A missing file yields "" and no error.
func LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// FileWatcher keeps a Session in step with a token file written by another
// process: writes sign in, removal signs out.
type FileWatcher struct {
	path    string
	sess    *Session
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewFileWatcher starts watching the directory that holds path. The
// directory is watched rather than the file so that atomic replaces and
// first-time creation are seen.
func NewFileWatcher(path string, sess *Session, logger *zap.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		w.Close()
		return nil, fmt.Errorf("creating token directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &FileWatcher{
		path:    filepath.Clean(path),
		sess:    sess,
		watcher: w,
		logger:  logger,
	}, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (fw *FileWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			fw.handle(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("token watcher error", zap.Error(err))
		}
	}
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		raw, err := LoadFile(fw.path)
		if err != nil {
			fw.logger.Warn("reloading token", zap.String("path", fw.path), zap.Error(err))
			return
		}
		fw.logger.Debug("token file changed", zap.String("op", event.Op.String()))
		fw.sess.Set(raw)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		fw.logger.Debug("token file removed", zap.String("op", event.Op.String()))
		fw.sess.Clear(SignedOut)
	}
}

// Close stops the underlying watcher.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
