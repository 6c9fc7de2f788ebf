// Package workspace provides isolated, request-scoped working directories.
// Each Session owns a uniquely named directory beneath a configured root and
// everything written inside it is removed when the session is closed.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Fixed layout inside a session directory.
const (
	mediaFile = "video.mp4"
	framesDir = "frames"
)

// maxOpenAttempts bounds id regeneration when a fresh id collides.
const maxOpenAttempts = 3

// Static errors for workspace operations.
var (
	// ErrSessionClosed is returned when a session is closed more than once.
	ErrSessionClosed = errors.New("workspace: session already closed")
	// ErrIDCollision is returned when no unused session id could be allocated.
	ErrIDCollision = errors.New("workspace: could not allocate unique session id")
	// ErrForeignSession is returned when a session does not belong to the manager.
	ErrForeignSession = errors.New("workspace: session not owned by this manager")
)

// Session is an isolated working directory for one request.
type Session struct {
	// ID is the unique session identifier.
	ID string
	// Root is the absolute path of the session directory.
	Root string
}

// MediaPath returns the path the downloaded media is written to.
func (s *Session) MediaPath() string {
	return filepath.Join(s.Root, mediaFile)
}

// FramePath returns the path of the still image for the frame at index.
func (s *Session) FramePath(index int) string {
	return filepath.Join(s.Root, framesDir, "frame_"+strconv.Itoa(index)+".jpg")
}

// Manager allocates and tears down sessions beneath a root directory.
// It is safe for concurrent use.
type Manager struct {
	root  string
	newID func() string

	mu     sync.Mutex
	active map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator replaces the session id generator. Intended for tests.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a Manager rooted at root.
// If root is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewManager(root string, opts ...Option) (*Manager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "keyframe-api")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	m := &Manager{
		root:   abs,
		newID:  func() string { return uuid.NewString() },
		active: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// Active returns the number of sessions that are open.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Open allocates a new session directory.
// The caller must Close the returned session exactly once.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	for attempt := 0; attempt < maxOpenAttempts; attempt++ {
		id := m.newID()
		if !m.reserve(id) {
			continue
		}

		dir := filepath.Join(m.root, id)
		// Mkdir rather than MkdirAll: an existing directory means the id was
		// used by an earlier session and must not be reused.
		if err := os.Mkdir(dir, 0750); err != nil {
			m.release(id)
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, fmt.Errorf("create session directory: %w", err)
		}

		if err := os.Mkdir(filepath.Join(dir, framesDir), 0750); err != nil {
			_ = os.RemoveAll(dir)
			m.release(id)
			return nil, fmt.Errorf("create frames directory: %w", err)
		}

		return &Session{ID: id, Root: dir}, nil
	}

	return nil, ErrIDCollision
}

// Close removes the session directory and everything beneath it.
// Removal failures are returned; the session is deregistered regardless.
func (m *Manager) Close(s *Session) error {
	if s == nil {
		return ErrForeignSession
	}
	if filepath.Dir(s.Root) != m.root || filepath.Base(s.Root) != s.ID {
		return fmt.Errorf("%w: %s", ErrForeignSession, s.Root)
	}
	if !m.release(s.ID) {
		return fmt.Errorf("%w: %s", ErrSessionClosed, s.ID)
	}

	if err := os.RemoveAll(s.Root); err != nil {
		return fmt.Errorf("remove session %s: %w", s.ID, err)
	}
	return nil
}

// reserve registers id as active. It reports false if id is already active.
func (m *Manager) reserve(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[id]; ok {
		return false
	}
	m.active[id] = struct{}{}
	return true
}

// release deregisters id. It reports false if id was not active.
func (m *Manager) release(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[id]; !ok {
		return false
	}
	delete(m.active, id)
	return true
}
