// Package workspace tracks per-workspace terminal session state: the
// session list, the active session, buffered command output, and command
// history. The snapshot subset survives restarts as a JSON file; transient
// running-state is rebuilt from observation after a reload.
package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codedeck/internal/logging"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

const (
	// MaxCommandHistory bounds the per-workspace command history ring
	MaxCommandHistory = 100

	saveDebounce = 500 * time.Millisecond
)

// Store manages workspace terminal state for every workspace path
type Store struct {
	ctx        context.Context
	workspaces map[string]*State
	sessionIdx map[string]string // session id -> workspace path
	statePath  string
	mu         sync.RWMutex

	// Debounced save
	saveTimer *time.Timer
	saveMu    sync.Mutex
}

// NewStore creates a store persisting under ~/.codedeck/workspaces.json
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, ".codedeck")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	s := &Store{
		workspaces: make(map[string]*State),
		sessionIdx: make(map[string]string),
		statePath:  filepath.Join(configDir, "workspaces.json"),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreAt creates a store persisting to an explicit file (used in tests)
func NewStoreAt(statePath string) (*Store, error) {
	s := &Store{
		workspaces: make(map[string]*State),
		sessionIdx: make(map[string]string),
		statePath:  statePath,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetContext sets the Wails context for event emission
func (s *Store) SetContext(ctx context.Context) {
	s.ctx = ctx
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		// First run
		return nil
	}

	var snapshot map[string]*State
	if err := json.Unmarshal(data, &snapshot); err != nil {
		logging.Warn("Workspace snapshot unreadable, starting fresh", "path", s.statePath, "error", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces = snapshot
	for path, ws := range s.workspaces {
		ws.Path = path
		ws.ensureRuntime()
		for _, sess := range ws.Sessions {
			s.sessionIdx[sess.ID] = path
		}
	}
	return nil
}

func (s *Store) saveImmediate() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.workspaces, "", "  ")
	s.mu.RUnlock()

	if err != nil {
		return err
	}
	return os.WriteFile(s.statePath, data, 0644)
}

// Save triggers a debounced snapshot write
func (s *Store) Save() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(saveDebounce, func() {
		if err := s.saveImmediate(); err != nil {
			logging.Error("Failed to save workspace snapshot", "error", err)
		}
	})
}

// SaveSync immediately writes the snapshot (for shutdown)
func (s *Store) SaveSync() error {
	s.saveMu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.saveMu.Unlock()

	return s.saveImmediate()
}

// CurrentState returns the bookkeeping record for a workspace path, creating
// it lazily with one default shell session. A workspace never has zero
// sessions.
func (s *Store) CurrentState(path string) *State {
	s.mu.Lock()
	ws, ok := s.workspaces[path]
	created := false
	if !ok {
		ws = newState(path)
		sess := &Session{
			ID:    uuid.New().String(),
			Title: "Terminal 1",
			Type:  SessionTypeShell,
			IsPty: true,
		}
		ws.Sessions = append(ws.Sessions, sess)
		ws.ActiveSessionID = sess.ID
		s.workspaces[path] = ws
		s.sessionIdx[sess.ID] = path
		created = true
	}
	s.mu.Unlock()

	if created {
		s.Save()
	}
	return ws
}

// Workspaces returns all known workspace paths
func (s *Store) Workspaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.workspaces))
	for path := range s.workspaces {
		paths = append(paths, path)
	}
	return paths
}

// AddSession appends a new session to a workspace and makes it active
func (s *Store) AddSession(path, title, sessionType string, isPty bool) *Session {
	ws := s.CurrentState(path)

	s.mu.Lock()
	if title == "" {
		title = nextSessionTitle(ws.Sessions)
	}
	sess := &Session{
		ID:    uuid.New().String(),
		Title: title,
		Type:  sessionType,
		IsPty: isPty,
	}
	ws.Sessions = append(ws.Sessions, sess)
	ws.ActiveSessionID = sess.ID
	s.sessionIdx[sess.ID] = path
	s.mu.Unlock()

	s.Save()
	s.emit("workspace:session:created", map[string]any{
		"workspacePath": path,
		"session":       sess,
	})
	return sess
}

// nextSessionTitle generates "Terminal N" above the highest existing number
func nextSessionTitle(sessions []*Session) string {
	maxNum := 0
	for _, sess := range sessions {
		var num int
		if n, err := parseTerminalTitle(sess.Title); err == nil {
			num = n
		}
		if num > maxNum {
			maxNum = num
		}
	}
	return terminalTitle(maxNum + 1)
}

// CloseSession removes a session from a workspace. Closing the last
// remaining session is a no-op; every workspace keeps at least one.
func (s *Store) CloseSession(path, sessionID string) bool {
	s.mu.Lock()
	ws, ok := s.workspaces[path]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if len(ws.Sessions) <= 1 {
		s.mu.Unlock()
		logging.Debug("Refusing to close last session", "workspace", logging.MaskPath(path))
		return false
	}

	idx := -1
	for i, sess := range ws.Sessions {
		if sess.ID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	ws.Sessions = append(ws.Sessions[:idx], ws.Sessions[idx+1:]...)
	delete(ws.outputs, sessionID)
	delete(ws.running, sessionID)
	delete(s.sessionIdx, sessionID)
	if ws.ActiveSessionID == sessionID {
		ws.ActiveSessionID = ws.Sessions[0].ID
	}
	s.mu.Unlock()

	s.Save()
	s.emit("workspace:session:closed", map[string]string{
		"workspacePath": path,
		"sessionId":     sessionID,
	})
	return true
}

// RenameSession retitles a session
func (s *Store) RenameSession(path, sessionID, title string) bool {
	s.mu.Lock()
	ws, ok := s.workspaces[path]
	if !ok {
		s.mu.Unlock()
		return false
	}
	sess := ws.session(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	sess.Title = title
	s.mu.Unlock()

	s.Save()
	return true
}

// SetActiveSession moves the workspace's active session pointer
func (s *Store) SetActiveSession(path, sessionID string) {
	s.mu.Lock()
	if ws, ok := s.workspaces[path]; ok && ws.session(sessionID) != nil {
		ws.ActiveSessionID = sessionID
	}
	s.mu.Unlock()

	s.Save()
}

// ActiveSession returns the active session id for a workspace
func (s *Store) ActiveSession(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ws, ok := s.workspaces[path]; ok {
		return ws.ActiveSessionID
	}
	return ""
}

// Sessions returns the session list for a workspace
func (s *Store) Sessions(path string) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[path]
	if !ok {
		return nil
	}
	out := make([]*Session, len(ws.Sessions))
	copy(out, ws.Sessions)
	return out
}

// FindSession locates a session by id across workspaces
func (s *Store) FindSession(sessionID string) (path string, sess *Session) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, ok := s.sessionIdx[sessionID]
	if !ok {
		return "", nil
	}
	return path, s.workspaces[path].session(sessionID)
}

// RecordCommand appends to the workspace's bounded command history
func (s *Store) RecordCommand(path, command string) {
	ws := s.CurrentState(path)

	s.mu.Lock()
	ws.CommandHistory = append(ws.CommandHistory, command)
	if len(ws.CommandHistory) > MaxCommandHistory {
		drop := len(ws.CommandHistory) - MaxCommandHistory
		ws.CommandHistory = append([]string(nil), ws.CommandHistory[drop:]...)
	}
	s.mu.Unlock()

	s.Save()
}

// History returns the workspace's command history, oldest first
func (s *Store) History(path string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[path]
	if !ok {
		return nil
	}
	out := make([]string, len(ws.CommandHistory))
	copy(out, ws.CommandHistory)
	return out
}

// router.Sink implementation - keyed by session id alone since command
// events carry no workspace path

// AppendOutput buffers routed output for a session and notifies the webview
func (s *Store) AppendOutput(sessionID, content string) {
	s.mu.Lock()
	path, ok := s.sessionIdx[sessionID]
	if ok {
		ws := s.workspaces[path]
		ws.outputs[sessionID] = append(ws.outputs[sessionID], content)
	}
	s.mu.Unlock()

	if !ok {
		logging.Warn("Output for unindexed session dropped", "sessionId", sessionID)
		return
	}
	s.emit("workspace:session:output", map[string]string{
		"workspacePath": path,
		"sessionId":     sessionID,
		"content":       content,
	})
}

// ClearOutput flushes a session's buffered output
func (s *Store) ClearOutput(sessionID string) {
	s.mu.Lock()
	path, ok := s.sessionIdx[sessionID]
	if ok {
		delete(s.workspaces[path].outputs, sessionID)
	}
	s.mu.Unlock()

	if ok {
		s.emit("workspace:session:cleared", map[string]string{
			"workspacePath": path,
			"sessionId":     sessionID,
		})
	}
}

// SetRunning updates a session's transient running flag
func (s *Store) SetRunning(sessionID string, running bool) {
	s.mu.Lock()
	path, ok := s.sessionIdx[sessionID]
	if ok {
		s.workspaces[path].running[sessionID] = running
	}
	s.mu.Unlock()

	// Running state is runtime only, never persisted
	if ok {
		s.emit("workspace:session:running", map[string]any{
			"workspacePath": path,
			"sessionId":     sessionID,
			"running":       running,
		})
	}
}

// Output returns the buffered output for a session
func (s *Store) Output(sessionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, ok := s.sessionIdx[sessionID]
	if !ok {
		return nil
	}
	buf := s.workspaces[path].outputs[sessionID]
	out := make([]string, len(buf))
	copy(out, buf)
	return out
}

// IsRunning returns a session's believed running state
func (s *Store) IsRunning(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, ok := s.sessionIdx[sessionID]
	if !ok {
		return false
	}
	return s.workspaces[path].running[sessionID]
}

// Reconcile compares believed running flags against externally observed
// process liveness and returns sessions whose processes are gone but whose
// flags still say running. Observed state wins over cached belief; the
// caller force-idles the returned sessions through the router so command
// bookkeeping is also cleared.
func (s *Store) Reconcile(alive func(sessionID string) bool) []string {
	s.mu.RLock()
	var believed []string
	for _, ws := range s.workspaces {
		for sessionID, running := range ws.running {
			if running {
				believed = append(believed, sessionID)
			}
		}
	}
	s.mu.RUnlock()

	var stale []string
	for _, sessionID := range believed {
		if !alive(sessionID) {
			stale = append(stale, sessionID)
		}
	}
	if len(stale) > 0 {
		logging.Info("Reconciled session running state", "corrected", len(stale))
	}
	return stale
}

func (s *Store) emit(event string, payload any) {
	if s.ctx != nil {
		runtime.EventsEmit(s.ctx, event, payload)
	}
}
