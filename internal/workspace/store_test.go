package workspace

import (
	"fmt"
	"path/filepath"
	"testing"

	"codedeck/internal/router"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreAt(filepath.Join(t.TempDir(), "workspaces.json"))
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}
	return s
}

func TestCurrentStateSeedsOneSession(t *testing.T) {
	s := newTestStore(t)

	ws := s.CurrentState("/tmp/proj")
	if len(ws.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(ws.Sessions))
	}
	if ws.ActiveSessionID != ws.Sessions[0].ID {
		t.Error("active session not pointing at the seeded session")
	}
	if ws.Sessions[0].Title != "Terminal 1" {
		t.Errorf("title = %q, want %q", ws.Sessions[0].Title, "Terminal 1")
	}
}

func TestCloseLastSessionIsNoOp(t *testing.T) {
	s := newTestStore(t)

	ws := s.CurrentState("/tmp/proj")
	only := ws.Sessions[0].ID

	if s.CloseSession("/tmp/proj", only) {
		t.Error("closing the sole session must be rejected")
	}
	if got := len(s.Sessions("/tmp/proj")); got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}
}

func TestCloseSessionMovesActivePointer(t *testing.T) {
	s := newTestStore(t)

	first := s.CurrentState("/tmp/proj").Sessions[0]
	second := s.AddSession("/tmp/proj", "", SessionTypeShell, true)

	if s.ActiveSession("/tmp/proj") != second.ID {
		t.Fatal("new session should become active")
	}
	if !s.CloseSession("/tmp/proj", second.ID) {
		t.Fatal("close of non-last session rejected")
	}
	if s.ActiveSession("/tmp/proj") != first.ID {
		t.Error("active pointer not moved to a surviving session")
	}
	if _, sess := s.FindSession(second.ID); sess != nil {
		t.Error("closed session still indexed")
	}
}

func TestSessionTitleNumbering(t *testing.T) {
	s := newTestStore(t)

	s.CurrentState("/tmp/proj") // Terminal 1
	a := s.AddSession("/tmp/proj", "", SessionTypeShell, true)
	if a.Title != "Terminal 2" {
		t.Errorf("title = %q, want %q", a.Title, "Terminal 2")
	}

	// Numbering continues past a custom title
	s.AddSession("/tmp/proj", "build watch", SessionTypeAgent, false)
	b := s.AddSession("/tmp/proj", "", SessionTypeShell, true)
	if b.Title != "Terminal 3" {
		t.Errorf("title = %q, want %q", b.Title, "Terminal 3")
	}
}

func TestCommandHistoryBounded(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < MaxCommandHistory+20; i++ {
		s.RecordCommand("/tmp/proj", fmt.Sprintf("cmd %d", i))
	}

	history := s.History("/tmp/proj")
	if len(history) != MaxCommandHistory {
		t.Fatalf("history = %d, want %d", len(history), MaxCommandHistory)
	}
	if history[0] != "cmd 20" {
		t.Errorf("oldest = %q, want %q", history[0], "cmd 20")
	}
	if history[len(history)-1] != fmt.Sprintf("cmd %d", MaxCommandHistory+19) {
		t.Errorf("newest = %q", history[len(history)-1])
	}
}

func TestSnapshotRoundTripDropsTransientState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspaces.json")

	s, err := NewStoreAt(path)
	if err != nil {
		t.Fatal(err)
	}
	ws := s.CurrentState("/tmp/proj")
	sessionID := ws.Sessions[0].ID
	s.AddSession("/tmp/proj", "extra", SessionTypeShell, true)
	s.RecordCommand("/tmp/proj", "make test")
	s.SetRunning(sessionID, true)
	s.AppendOutput(sessionID, "building...\n")
	if err := s.SaveSync(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewStoreAt(path)
	if err != nil {
		t.Fatal(err)
	}

	// Persistable subset survives
	if got := len(reloaded.Sessions("/tmp/proj")); got != 2 {
		t.Errorf("sessions after reload = %d, want 2", got)
	}
	if history := reloaded.History("/tmp/proj"); len(history) != 1 || history[0] != "make test" {
		t.Errorf("history after reload = %v", history)
	}

	// Transient maps reset
	if reloaded.IsRunning(sessionID) {
		t.Error("running flag survived reload")
	}
	if out := reloaded.Output(sessionID); len(out) != 0 {
		t.Errorf("output buffer survived reload: %v", out)
	}
}

func TestReconcileTrustsObservedState(t *testing.T) {
	s := newTestStore(t)

	ws := s.CurrentState("/tmp/proj")
	dead := ws.Sessions[0].ID
	live := s.AddSession("/tmp/proj", "", SessionTypeShell, true).ID

	s.SetRunning(dead, true)
	s.SetRunning(live, true)

	stale := s.Reconcile(func(sessionID string) bool {
		return sessionID == live
	})

	if len(stale) != 1 || stale[0] != dead {
		t.Fatalf("stale = %v, want [%s]", stale, dead)
	}
	// Belief about the live session is untouched
	if !s.IsRunning(live) {
		t.Error("reconcile must not touch sessions whose process is alive")
	}
}

// Full scenario: submit, stream, exit - store wired as the router's sink
func TestCommandLifecycleThroughRouter(t *testing.T) {
	s := newTestStore(t)
	r := router.New(s, router.Options{})
	defer r.Close()

	ws := s.CurrentState("/tmp/proj")
	s1 := ws.Sessions[0].ID

	s.RecordCommand("/tmp/proj", "echo hi")
	commandID := r.Begin(s1)

	if !s.IsRunning(s1) {
		t.Fatal("running flag not set on submit")
	}

	r.HandleOutput(router.OutputEvent{
		CommandID:  commandID,
		OutputType: router.OutputStdout,
		Content:    "hi\n",
	})
	if out := s.Output(s1); len(out) != 1 || out[0] != "hi\n" {
		t.Fatalf("output = %v, want [hi\\n]", out)
	}

	r.HandleOutput(router.OutputEvent{
		CommandID:  commandID,
		OutputType: router.OutputExit,
		ExitCode:   0,
	})
	if s.IsRunning(s1) {
		t.Error("running flag not cleared on exit")
	}
	if _, ok := r.SessionFor(commandID); ok {
		t.Error("command mapping not removed on exit")
	}
}
