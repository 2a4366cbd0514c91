package workspace

import "fmt"

// Session kinds within a workspace
const (
	SessionTypeShell = "shell" // local PTY-backed shell
	SessionTypeAgent = "agent" // backend-run agent command session
)

// Session identifies one logical terminal tab within a workspace
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	IsPty bool   `json:"isPty"`
}

// State is the per-workspace terminal bookkeeping record. Only the snapshot
// subset (sessions, active id, command history) is persisted; output buffers
// and running flags are runtime only and reset on reload.
type State struct {
	Path            string     `json:"path"`
	Sessions        []*Session `json:"sessions"`
	ActiveSessionID string     `json:"activeSessionId"`
	CommandHistory  []string   `json:"commandHistory"`

	// Runtime only - not persisted
	outputs map[string][]string
	running map[string]bool
}

func newState(path string) *State {
	return &State{
		Path:           path,
		Sessions:       []*Session{},
		CommandHistory: []string{},
		outputs:        make(map[string][]string),
		running:        make(map[string]bool),
	}
}

// ensureRuntime initializes the transient maps after a snapshot load
func (s *State) ensureRuntime() {
	if s.outputs == nil {
		s.outputs = make(map[string][]string)
	}
	if s.running == nil {
		s.running = make(map[string]bool)
	}
	if s.Sessions == nil {
		s.Sessions = []*Session{}
	}
	if s.CommandHistory == nil {
		s.CommandHistory = []string{}
	}
}

func terminalTitle(n int) string {
	return fmt.Sprintf("Terminal %d", n)
}

func parseTerminalTitle(title string) (int, error) {
	var n int
	_, err := fmt.Sscanf(title, "Terminal %d", &n)
	return n, err
}

func (s *State) session(id string) *Session {
	for _, sess := range s.Sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}
