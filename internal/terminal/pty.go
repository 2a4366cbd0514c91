package terminal

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"codedeck/internal/logging"
	"codedeck/internal/term"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

// Session is one live PTY-backed shell bound to a workspace
type Session struct {
	ID          string
	Title       string
	WorkspaceID string
	WorkDir     string
	Pty         *os.File
	Cmd         *exec.Cmd

	running  bool
	mu       sync.Mutex
	instance *term.Instance
	onOutput func(id string, data []byte)
	onExit   func(id string)

	// Flow control: reads block while the webview is saturated
	pauseCond *sync.Cond
	isPaused  bool
}

// Manager owns the live PTY sessions for all workspaces
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	onOutput func(id string, data []byte)
	onExit   func(id string)
}

// NewManager creates an empty PTY session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// SetOutputHandler sets the callback for session output
func (m *Manager) SetOutputHandler(handler func(id string, data []byte)) {
	m.onOutput = handler
}

// SetExitHandler sets the callback for session exit
func (m *Manager) SetExitHandler(handler func(id string)) {
	m.onExit = handler
}

// Create starts a new PTY session with a generated id
func (m *Manager) Create(workspaceID, title, workDir string) (*Session, error) {
	return m.CreateWithID(uuid.New().String(), workspaceID, title, workDir)
}

// CreateWithID starts a new PTY session with a specific id
func (m *Manager) CreateWithID(id, workspaceID, title, workDir string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}

	cmd := exec.Command(shell, "-l")
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		logging.Error("Failed to start PTY", "id", id, "workDir", logging.MaskPath(workDir), "error", err)
		return nil, err
	}

	pty.Setsize(ptmx, &pty.Winsize{
		Rows: term.DefaultRows,
		Cols: term.DefaultCols,
	})

	s := &Session{
		ID:          id,
		Title:       title,
		WorkspaceID: workspaceID,
		WorkDir:     workDir,
		Pty:         ptmx,
		Cmd:         cmd,
		running:     true,
		onOutput:    m.onOutput,
		onExit:      m.onExit,
	}
	s.pauseCond = sync.NewCond(&s.mu)

	m.sessions[s.ID] = s

	go s.readOutput()
	go s.waitForExit()

	logging.Info("PTY session created", "id", s.ID, "title", title, "workDir", logging.MaskPath(workDir))
	return s, nil
}

// Get returns a session by id, or nil
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// List returns all live sessions
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}

// ListWorkspace returns live sessions belonging to a workspace
func (m *Manager) ListWorkspace(workspaceID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []*Session
	for _, s := range m.sessions {
		if s.WorkspaceID == workspaceID {
			list = append(list, s)
		}
	}
	return list
}

// Close terminates a session and removes it
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, exists := m.sessions[id]
	if !exists {
		m.mu.Unlock()
		return nil
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	logging.Info("PTY session closed", "id", id)
	return s.Close()
}

// CloseAll terminates every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

// Write sends input bytes to a session
func (m *Manager) Write(id string, data []byte) error {
	s := m.Get(id)
	if s == nil {
		return fmt.Errorf("pty session not found: %s", id)
	}
	return s.Write(data)
}

// Resize changes a session's window size
func (m *Manager) Resize(id string, rows, cols uint16) error {
	s := m.Get(id)
	if s == nil {
		return fmt.Errorf("pty session not found: %s", id)
	}
	return s.Resize(rows, cols)
}

// Session methods

// BindInstance wires the session's output into a retained terminal instance
// and applies the instance's current size to the PTY. The instance keeps
// scrollback across view remounts; the PTY is the byte source.
func (s *Session) BindInstance(inst *term.Instance) {
	s.mu.Lock()
	s.instance = inst
	s.mu.Unlock()

	if inst != nil {
		rows, cols := inst.Size()
		if err := s.Resize(rows, cols); err != nil {
			// Expected while the view container is zero-sized mid-transition
			logging.Debug("Resize on bind failed", "id", s.ID, "error", err)
		}
	}
}

// Pause blocks output reading (flow control)
func (s *Session) Pause() {
	s.mu.Lock()
	s.isPaused = true
	s.mu.Unlock()
}

// Resume unblocks output reading
func (s *Session) Resume() {
	s.mu.Lock()
	s.isPaused = false
	s.pauseCond.Signal()
	s.mu.Unlock()
}

// IsPaused reports whether output reading is blocked
func (s *Session) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isPaused
}

func (s *Session) readOutput() {
	buf := make([]byte, 4096)
	for {
		s.mu.Lock()
		for s.isPaused {
			s.pauseCond.Wait()
		}
		inst := s.instance
		s.mu.Unlock()

		n, err := s.Pty.Read(buf)
		if err != nil {
			if err != io.EOF {
				logging.Debug("PTY read ended", "id", s.ID, "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if inst != nil {
			inst.Feed(data)
		}
		if s.onOutput != nil {
			s.onOutput(s.ID, data)
		}
	}
}

func (s *Session) waitForExit() {
	s.Cmd.Wait()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	if s.onExit != nil {
		s.onExit(s.ID)
	}
}

// Write sends input to the PTY
func (s *Session) Write(data []byte) error {
	_, err := s.Pty.Write(data)
	return err
}

// Resize changes the PTY window size and records it on the bound instance
func (s *Session) Resize(rows, cols uint16) error {
	if err := pty.Setsize(s.Pty, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return err
	}

	s.mu.Lock()
	inst := s.instance
	s.mu.Unlock()
	if inst != nil {
		inst.SetSize(rows, cols)
	}
	return nil
}

// Close kills the shell process and closes the PTY
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Cmd != nil && s.Cmd.Process != nil {
		s.Cmd.Process.Kill()
	}
	if s.Pty != nil {
		s.Pty.Close()
	}
	s.running = false
	return nil
}

// IsRunning reports whether the shell process is alive
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Info is the session summary sent to the webview
type Info struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	WorkspaceID string `json:"workspaceId"`
	WorkDir     string `json:"workDir"`
	Running     bool   `json:"running"`
}

// Info returns the session summary
func (s *Session) Info() Info {
	return Info{
		ID:          s.ID,
		Title:       s.Title,
		WorkspaceID: s.WorkspaceID,
		WorkDir:     s.WorkDir,
		Running:     s.IsRunning(),
	}
}
