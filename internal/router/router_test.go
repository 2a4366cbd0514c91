package router

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeSink records routed deliveries for assertions
type fakeSink struct {
	mu      sync.Mutex
	outputs map[string][]string
	running map[string]bool
	cleared map[string]int
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		outputs: make(map[string][]string),
		running: make(map[string]bool),
		cleared: make(map[string]int),
	}
}

func (f *fakeSink) AppendOutput(sessionID, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[sessionID] = append(f.outputs[sessionID], content)
}

func (f *fakeSink) ClearOutput(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[sessionID] = nil
	f.cleared[sessionID]++
}

func (f *fakeSink) SetRunning(sessionID string, running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[sessionID] = running
}

func (f *fakeSink) output(sessionID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.outputs[sessionID], "")
}

func (f *fakeSink) isRunning(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[sessionID]
}

func TestMappingExistsBeforeDispatch(t *testing.T) {
	sink := newFakeSink()
	r := New(sink, Options{})
	defer r.Close()

	// Immediately fire a synthetic output event for the returned command id,
	// simulating output arriving before the dispatch call even returns.
	commandID := r.Begin("s1")
	r.HandleOutput(OutputEvent{CommandID: commandID, OutputType: OutputStdout, Content: "hi\n"})

	if got := sink.output("s1"); got != "hi\n" {
		t.Errorf("output = %q, want %q (event must not be dropped)", got, "hi\n")
	}
}

func TestUnknownCommandDropped(t *testing.T) {
	sink := newFakeSink()
	r := New(sink, Options{})
	defer r.Close()

	r.HandleOutput(OutputEvent{CommandID: "never-issued", OutputType: OutputStdout, Content: "ghost"})

	if got := sink.output("s1"); got != "" {
		t.Errorf("unexpected delivery: %q", got)
	}
}

func TestExitTransitionsToIdle(t *testing.T) {
	sink := newFakeSink()
	r := New(sink, Options{})
	defer r.Close()

	commandID := r.Begin("s1")
	if !sink.isRunning("s1") {
		t.Fatal("session should be running after Begin")
	}

	r.HandleOutput(OutputEvent{CommandID: commandID, OutputType: OutputExit, ExitCode: 0})

	if sink.isRunning("s1") {
		t.Error("session still running after exit event")
	}
	if _, ok := r.SessionFor(commandID); ok {
		t.Error("command mapping not removed after exit")
	}
	if _, ok := r.CommandFor("s1"); ok {
		t.Error("in-flight command not cleared after exit")
	}
	if r.InFlight() != 0 {
		t.Errorf("in-flight = %d, want 0", r.InFlight())
	}
}

func TestInterleavedCommandsRouteToOwners(t *testing.T) {
	sink := newFakeSink()
	r := New(sink, Options{})
	defer r.Close()

	c1 := r.Begin("s1")
	c2 := r.Begin("s2")

	r.HandleOutput(OutputEvent{CommandID: c1, OutputType: OutputStdout, Content: "one "})
	r.HandleOutput(OutputEvent{CommandID: c2, OutputType: OutputStdout, Content: "two "})
	r.HandleOutput(OutputEvent{CommandID: c1, OutputType: OutputStderr, Content: "more"})

	if got := sink.output("s1"); got != "one more" {
		t.Errorf("s1 output = %q, want %q", got, "one more")
	}
	if got := sink.output("s2"); got != "two " {
		t.Errorf("s2 output = %q, want %q", got, "two ")
	}
}

func TestClearScreenFlushesBuffer(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "erase display",
			content: "old stuff\x1b[2Jfresh",
			want:    "fresh",
		},
		{
			name:    "erase display and scrollback",
			content: "\x1b[3J",
			want:    "",
		},
		{
			name:    "full reset",
			content: "\x1bcprompt$ ",
			want:    "prompt$ ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newFakeSink()
			r := New(sink, Options{})
			defer r.Close()

			commandID := r.Begin("s1")
			r.HandleOutput(OutputEvent{CommandID: commandID, OutputType: OutputStdout, Content: "before\n"})
			r.HandleOutput(OutputEvent{CommandID: commandID, OutputType: OutputStdout, Content: tt.content})

			if sink.cleared["s1"] != 1 {
				t.Errorf("clears = %d, want 1", sink.cleared["s1"])
			}
			if got := sink.output("s1"); got != tt.want {
				t.Errorf("output after clear = %q, want %q", got, tt.want)
			}
			if strings.Contains(sink.output("s1"), "\x1b[2J") {
				t.Error("escape sequence leaked into visible output")
			}
		})
	}
}

func TestClearScreenIndependentOfExit(t *testing.T) {
	sink := newFakeSink()
	r := New(sink, Options{})
	defer r.Close()

	commandID := r.Begin("s1")
	r.HandleOutput(OutputEvent{CommandID: commandID, OutputType: OutputStdout, Content: "\x1b[2J"})

	// Clearing must not end the command
	if !sink.isRunning("s1") {
		t.Error("clear-screen must not transition the session to idle")
	}
	if _, ok := r.SessionFor(commandID); !ok {
		t.Error("clear-screen must not drop the command mapping")
	}
}

func TestForceIdle(t *testing.T) {
	sink := newFakeSink()
	r := New(sink, Options{})
	defer r.Close()

	commandID := r.Begin("s1")
	r.ForceIdle("s1")

	if sink.isRunning("s1") {
		t.Error("session still running after ForceIdle")
	}
	if _, ok := r.SessionFor(commandID); ok {
		t.Error("command mapping survived ForceIdle")
	}

	// Late output for the forced-idle command is dropped, not misrouted
	r.HandleOutput(OutputEvent{CommandID: commandID, OutputType: OutputStdout, Content: "late"})
	if got := sink.output("s1"); got != "" {
		t.Errorf("late output delivered: %q", got)
	}
}

func TestSweepStaleExpiresOldCommands(t *testing.T) {
	sink := newFakeSink()
	r := New(sink, Options{StaleAfter: time.Minute})
	defer r.Close()

	stale := r.Begin("s1")
	fresh := r.Begin("s2")

	// Backdate the stale command past the TTL
	r.mu.Lock()
	r.startTimes[stale] = time.Now().Add(-2 * time.Minute)
	r.mu.Unlock()

	expired := r.SweepStale(time.Now())

	if len(expired) != 1 || expired[0] != stale {
		t.Fatalf("expired = %v, want [%s]", expired, stale)
	}
	if sink.isRunning("s1") {
		t.Error("stale session still running after sweep")
	}
	if !sink.isRunning("s2") {
		t.Error("fresh session was expired by sweep")
	}
	if _, ok := r.SessionFor(fresh); !ok {
		t.Error("fresh command mapping lost in sweep")
	}
}
