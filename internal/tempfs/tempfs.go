// Package tempfs manages the per-run temporary files of a conversion.
//
// Every run gets a Scope. Assets allocated through the scope live under the
// manager's directory with names derived from a random run ID, so concurrent
// runs never share a path. Closing the scope deletes whatever is left.
package tempfs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Kind identifies the role of a temp file within a run.
type Kind string

const (
	KindInput  Kind = "input"  // still image fed to the masker
	KindOutput Kind = "output" // masked PNG
	KindVideo  Kind = "video"  // downloaded video awaiting frame extraction
)

// State tracks an asset through a run.
type State int

const (
	StateAllocated State = iota
	StateWritten
	StateConsumed
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateWritten:
		return "written"
	case StateConsumed:
		return "consumed"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Asset is one temp file owned by a Scope.
type Asset struct {
	Path string
	Kind Kind

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle state.
func (a *Asset) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Asset) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Write stores data at the asset path.
func (a *Asset) Write(data []byte) error {
	if err := os.WriteFile(a.Path, data, 0o600); err != nil {
		return err
	}
	a.setState(StateWritten)
	return nil
}

// MarkWritten records that an external producer (ffmpeg, an encoder) filled the file.
func (a *Asset) MarkWritten() {
	a.setState(StateWritten)
}

// MarkConsumed records that an external consumer has read the file.
func (a *Asset) MarkConsumed() {
	a.setState(StateConsumed)
}

// Read returns the file content and marks the asset consumed.
func (a *Asset) Read() ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, err
	}
	a.setState(StateConsumed)
	return data, nil
}

// Manager hands out temp paths under one directory.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for cleanup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a Manager rooted at dir. An empty dir means
// os.TempDir()/circlebot.
func New(dir string, opts ...Option) *Manager {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "circlebot")
	}
	m := &Manager{dir: dir}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Dir returns the managed directory.
func (m *Manager) Dir() string {
	return m.dir
}

// EnsureDir creates the managed directory if needed.
func (m *Manager) EnsureDir() error {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return fmt.Errorf("tempfs: create %s: %w", m.dir, err)
	}
	return nil
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewPath returns the path for an asset of the given kind in run runID.
func (m *Manager) NewPath(kind Kind, runID string) string {
	var name string
	switch kind {
	case KindInput:
		name = "input-" + runID + ".png"
	case KindOutput:
		name = "output-circle-" + runID + ".png"
	case KindVideo:
		name = "video-" + runID + ".mp4"
	default:
		name = string(kind) + "-" + runID
	}
	return filepath.Join(m.dir, name)
}

// Release deletes path. A missing file is not an error.
func (m *Manager) Release(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tempfs: release %s: %w", path, err)
	}
	return nil
}

// NewScope starts a run with a fresh run ID.
func (m *Manager) NewScope() *Scope {
	return m.NewScopeWithID(NewRunID())
}

// NewScopeWithID starts a run with a caller-supplied run ID.
func (m *Manager) NewScopeWithID(runID string) *Scope {
	return &Scope{m: m, runID: runID}
}

// Scope owns the assets of one run. It is safe for concurrent use, but a
// run normally drives it from a single goroutine.
type Scope struct {
	m     *Manager
	runID string

	mu     sync.Mutex
	assets []*Asset
	closed bool
}

// RunID returns the run identifier used in asset names.
func (s *Scope) RunID() string {
	return s.runID
}

// Allocate registers a new asset of the given kind. Nothing is created on
// disk until the asset is written.
func (s *Scope) Allocate(kind Kind) *Asset {
	a := &Asset{Path: s.m.NewPath(kind, s.runID), Kind: kind}
	s.mu.Lock()
	s.assets = append(s.assets, a)
	s.mu.Unlock()
	return a
}

// Release deletes one asset ahead of Close.
func (s *Scope) Release(a *Asset) error {
	if a == nil || a.State() == StateDeleted {
		return nil
	}
	if err := s.m.Release(a.Path); err != nil {
		return err
	}
	a.setState(StateDeleted)
	return nil
}

// Close releases every asset still held. Failures are logged, not returned.
// Calling Close more than once is a no-op.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	assets := s.assets
	s.assets = nil
	s.mu.Unlock()

	for _, a := range assets {
		if err := s.Release(a); err != nil {
			s.m.logger.Warn("temp cleanup failed",
				"run_id", s.runID,
				"path", a.Path,
				"error", err,
			)
		}
	}
}

// Assets returns a snapshot of the assets allocated and not yet closed.
func (s *Scope) Assets() []*Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Asset(nil), s.assets...)
}
