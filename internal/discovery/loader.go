// Package discovery finds extension packages, settles version conflicts and
// drives the loaded modules through their startup callbacks.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/aretw0/kiln/internal/loader"
	"github.com/aretw0/kiln/internal/logging"
	"github.com/aretw0/kiln/internal/registry"
	"github.com/aretw0/kiln/pkg/extension"
	"github.com/aretw0/kiln/pkg/unit"
)

// Status is the outcome of discovery for one package file.
type Status string

const (
	StatusSelected   Status = "selected"
	StatusSuperseded Status = "superseded"
	StatusRejected   Status = "rejected"
)

// Candidate is one package file seen by Survey.
type Candidate struct {
	Path       string               `json:"path" yaml:"path"`
	Descriptor extension.Descriptor `json:"descriptor" yaml:"descriptor"`
	Status     Status               `json:"status" yaml:"status"`
	Reason     string               `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Registry is the part of the code unit registry the read transform needs.
type Registry interface {
	View() unit.View
	SnapshotNames() registry.NameSnapshot
	RestoreNames(registry.NameSnapshot)
}

// Loader discovers and loads the extension packages of one directory.
type Loader struct {
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	loaded   []extension.Loaded
	children []*loader.Child
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a loader for the packages in dir.
func New(dir string, opts ...Option) *Loader {
	l := &Loader{dir: dir}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.NewNop()
	}
	l.logger = logging.Component(l.logger, "discovery")
	return l
}

// Survey reports every package file in the directory with its status,
// in path order.
func (l *Loader) Survey() []Candidate {
	paths, err := Scan(l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Extension directory does not exist", "dir", l.dir)
		return nil
	}
	if err != nil {
		l.logger.Error("Failed to list extension directory", "dir", l.dir, "err", err)
		return nil
	}

	var (
		cands []Candidate
		descs []extension.Descriptor
	)
	for _, p := range paths {
		d, err := ParseDescriptor(p)
		if err != nil {
			l.logger.Warn("Skipping extension package", "path", p, "err", err)
			cands = append(cands, Candidate{Path: p, Status: StatusRejected, Reason: err.Error()})
			continue
		}
		descs = append(descs, d)
		cands = append(cands, Candidate{Path: p, Descriptor: d})
	}

	kept, dropped := Resolve(descs)
	winner := make(map[string]extension.Descriptor, len(kept))
	for _, d := range kept {
		winner[d.Name] = d
	}
	losers := make(map[string]bool, len(dropped))
	for _, d := range dropped {
		w := winner[d.Name]
		l.logger.Warn("Multiple extensions share a name, only one is loaded",
			"name", d.Name, "skipped", d.Path, "skipped_version", d.Version,
			"kept", w.Path, "kept_version", w.Version)
		losers[d.Path] = true
	}
	for i := range cands {
		c := &cands[i]
		if c.Status == StatusRejected {
			continue
		}
		if losers[c.Path] {
			c.Status = StatusSuperseded
			c.Reason = fmt.Sprintf("superseded by version %s (%s)", winner[c.Descriptor.Name].Version, winner[c.Descriptor.Name].Path)
		} else {
			c.Status = StatusSelected
		}
	}
	return cands
}

// Discover returns the descriptors to load, one per name, sorted by name.
func (l *Loader) Discover() []extension.Descriptor {
	var descs []extension.Descriptor
	for _, c := range l.Survey() {
		if c.Status == StatusSelected {
			descs = append(descs, c.Descriptor)
		}
	}
	kept, _ := Resolve(descs)
	return kept
}

// Load instantiates every discovered module in its own child of root, then
// runs the read transform over reg and the late startup callbacks. Packages
// that fail to load are logged and skipped.
func (l *Loader) Load(root *loader.Root, reg Registry) {
	for _, d := range l.Discover() {
		log := l.logger.With("name", d.Name, "version", d.Version, "path", d.Path)
		child, err := root.NewChild(d.Name, d.Path)
		if err != nil {
			log.Error("Failed to open extension package", "err", err)
			continue
		}
		m, err := child.Instantiate(d.Entrypoint)
		if err != nil {
			log.Error("Failed to instantiate extension", "entrypoint", d.Entrypoint, "err", err)
			child.Close()
			continue
		}
		l.mu.Lock()
		l.loaded = append(l.loaded, extension.Loaded{Descriptor: d, Module: m, Domain: child})
		l.children = append(l.children, child)
		l.mu.Unlock()
		log.Info("Extension loaded", "entrypoint", d.Entrypoint)
	}

	l.ReadTransform(reg)
	l.LateStartup(reg)
}

// ReadTransform hands the registry to every module in load order. Unit names
// are restored after each module.
func (l *Loader) ReadTransform(reg Registry) {
	snap := reg.SnapshotNames()
	view := reg.View()
	for _, ld := range l.Modules() {
		l.guard(ld, "OnReadTransform", func() { ld.Module.OnReadTransform(view) })
		reg.RestoreNames(snap)
	}
}

// LateStartup runs every module's LateStartup in load order, then restores
// unit names once more.
func (l *Loader) LateStartup(reg Registry) {
	snap := reg.SnapshotNames()
	for _, ld := range l.Modules() {
		l.guard(ld, "LateStartup", ld.Module.LateStartup)
	}
	reg.RestoreNames(snap)
}

func (l *Loader) guard(ld extension.Loaded, callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Extension callback panicked", "name", ld.Descriptor.Name, "callback", callback, "panic", r)
		}
	}()
	fn()
}

// Modules returns the loaded modules in load order.
func (l *Loader) Modules() []extension.Loaded {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]extension.Loaded(nil), l.loaded...)
}

// Close closes every child domain opened by Load.
func (l *Loader) Close() error {
	l.mu.Lock()
	children := l.children
	l.children = nil
	l.loaded = nil
	l.mu.Unlock()

	var errs []error
	for _, c := range children {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
