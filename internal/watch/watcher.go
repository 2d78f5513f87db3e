package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// Target is the registry being kept in step. *registry.Registry satisfies it.
type Target interface {
	Register(models.Endpoint) (models.Capability, error)
	Remove(id string) error
}

// Changes summarizes one reconciliation.
type Changes struct {
	Added   []string
	Updated []string
	Removed []string
	// Skipped are file entries whose id is already owned by someone else.
	Skipped []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added)+len(c.Updated)+len(c.Removed)+len(c.Skipped) == 0
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   zerolog.Logger
	// OnChange is called after every reconciliation that changed something.
	OnChange func(Changes)
}

// Watcher reconciles a Target against an endpoints file. It only removes
// capabilities it registered itself.
type Watcher struct {
	path   string
	target Target
	opts   Options

	mu    sync.Mutex
	owned map[string]models.Endpoint
}

// New creates a Watcher for path.
func New(path string, target Target, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return &Watcher{path: abs, target: target, opts: opts, owned: make(map[string]models.Endpoint)}
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Sync loads the file once and reconciles the target with it. A file that
// fails to parse leaves the target untouched.
func (w *Watcher) Sync() (Changes, error) {
	desired, err := LoadFile(w.path)
	if err != nil {
		return Changes{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reconcile(desired)
}

func (w *Watcher) reconcile(desired []models.Endpoint) (Changes, error) {
	var (
		changes Changes
		errs    []error
	)

	want := make(map[string]bool, len(desired))
	for _, ep := range desired {
		want[ep.CapabilityID] = true
	}

	for id := range w.owned {
		if want[id] {
			continue
		}
		if err := w.target.Remove(id); err != nil && !errors.Is(err, registry.ErrNotFound) {
			errs = append(errs, fmt.Errorf("remove %s: %w", id, err))
			continue
		}
		delete(w.owned, id)
		changes.Removed = append(changes.Removed, id)
	}
	sort.Strings(changes.Removed)

	for _, ep := range desired {
		prev, owned := w.owned[ep.CapabilityID]
		switch {
		case owned && prev == ep:
			continue
		case owned:
			// Descriptors are immutable; replace.
			if err := w.target.Remove(ep.CapabilityID); err != nil && !errors.Is(err, registry.ErrNotFound) {
				errs = append(errs, fmt.Errorf("replace %s: %w", ep.CapabilityID, err))
				continue
			}
			delete(w.owned, ep.CapabilityID)
			if _, err := w.target.Register(ep); err != nil {
				errs = append(errs, fmt.Errorf("replace %s: %w", ep.CapabilityID, err))
				continue
			}
			w.owned[ep.CapabilityID] = ep
			changes.Updated = append(changes.Updated, ep.CapabilityID)
		default:
			if _, err := w.target.Register(ep); err != nil {
				if errors.Is(err, registry.ErrDuplicateCapability) {
					changes.Skipped = append(changes.Skipped, ep.CapabilityID)
					continue
				}
				errs = append(errs, fmt.Errorf("register %s: %w", ep.CapabilityID, err))
				continue
			}
			w.owned[ep.CapabilityID] = ep
			changes.Added = append(changes.Added, ep.CapabilityID)
		}
	}

	return changes, errors.Join(errs...)
}

// Run syncs once, then watches the file until ctx is done. The parent
// directory is watched so that atomic replaces by editors are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.sync()

	var (
		timer *time.Timer
		fire  <-chan time.Time
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
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn().Err(err).Str("path", w.path).Msg("endpoints watcher error")
		case <-fire:
			fire = nil
			w.sync()
		}
	}
}

func (w *Watcher) sync() {
	changes, err := w.Sync()
	if err != nil {
		w.opts.Logger.Error().Err(err).Str("path", w.path).Msg("endpoints file not applied")
	}
	if changes.Empty() {
		return
	}
	w.opts.Logger.Info().
		Strs("added", changes.Added).
		Strs("updated", changes.Updated).
		Strs("removed", changes.Removed).
		Strs("skipped", changes.Skipped).
		Msg("endpoints reloaded")
	if w.opts.OnChange != nil {
		w.opts.OnChange(changes)
	}
}
