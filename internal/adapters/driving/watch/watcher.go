// Package watch keeps the index in sync with a directory of book files.
//
// Created and written files are normalised and re-ingested under their path
// relative to the root; removed or renamed files have their chunks deleted.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driving"
	"github.com/custodia-labs/libris/internal/logger"
)

// ErrMissingServices is returned when the watcher is built without ports.
var ErrMissingServices = errors.New("watcher requires document and rag services")

// Option configures a Watcher.
type Option func(*Watcher)

// WithSupportsFile sets the filter deciding which files are ingested.
// Without it every regular file is passed to the document service.
func WithSupportsFile(f func(path string) bool) Option {
	return func(w *Watcher) {
		w.supports = f
	}
}

// WithInitialScan ingests every supported file under the root before
// watching for changes.
func WithInitialScan() Option {
	return func(w *Watcher) {
		w.scan = true
	}
}

// Watcher re-ingests files under a root directory as they change.
type Watcher struct {
	root     string
	docs     driving.DocumentService
	rag      driving.RAGService
	supports func(path string) bool
	scan     bool
}

// New creates a watcher for root.
func New(root string, docs driving.DocumentService, rag driving.RAGService, opts ...Option) (*Watcher, error) {
	if docs == nil || rag == nil {
		return nil, ErrMissingServices
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, root)
	}

	w := &Watcher{
		root:     abs,
		docs:     docs,
		rag:      rag,
		supports: func(string) bool { return true },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute directory being watched.
func (w *Watcher) Root() string {
	return w.root
}

// Run watches the root and its subdirectories until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	if w.scan {
		w.Scan(ctx)
	}

	logger.Info("watching %s", w.root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)
		}
	}
}

// Scan ingests every supported file under the root.
func (w *Watcher) Scan(ctx context.Context) {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !w.supports(path) {
			return nil
		}
		if err := w.Apply(ctx, domain.ChangeCreated, path); err != nil {
			logger.Warn("watcher: %v", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("watcher: scanning %s: %v", w.root, err)
	}
}

// Apply brings the index in line with one file change.
func (w *Watcher) Apply(ctx context.Context, change domain.ChangeType, path string) error {
	id, err := w.DocumentID(path)
	if err != nil {
		return err
	}

	if change == domain.ChangeDeleted {
		logger.Debug("watcher: %s removed, deleting %s", path, id)
		if err := w.rag.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	res, err := w.docs.IngestRaw(ctx, id, &domain.RawDocument{
		URI:      path,
		Content:  data,
		Metadata: map[string]any{"source_file": id},
	})
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", id, err)
	}
	logger.Info("watcher: %s %s (%d chunks, %s)", change, id, res.Indexed, res.Outcome)
	return nil
}

// DocumentID returns the slash-separated path of file relative to the root.
func (w *Watcher) DocumentID(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidInput, path)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", domain.ErrInvalidInput, path, w.root)
	}
	return filepath.ToSlash(rel), nil
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, event.Name); err != nil {
				logger.Warn("watcher: %v", err)
			}
			return
		}
	}
	if !w.supports(event.Name) {
		return
	}

	var change domain.ChangeType
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		change = domain.ChangeDeleted
	case event.Has(fsnotify.Create):
		change = domain.ChangeCreated
	case event.Has(fsnotify.Write):
		change = domain.ChangeUpdated
	default:
		return
	}

	if err := w.Apply(ctx, change, event.Name); err != nil {
		logger.Warn("watcher: %v", err)
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
