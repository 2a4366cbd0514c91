// Package router correlates asynchronously streamed command output with the
// terminal session that issued the command. Commands from multiple sessions
// run concurrently and their output events interleave on one event stream;
// the command id embedded in each event is the only routing key.
package router

import (
	"strings"
	"sync"
	"time"

	"codedeck/internal/logging"

	"github.com/google/uuid"
)

// Output event types emitted by the backend
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputExit   = "exit"
)

// DefaultStaleAfter is how long an in-flight command may go without an exit
// event before the sweep forces its session back to idle. Covers commands
// whose exit event was lost (backend crash, reconnect).
const DefaultStaleAfter = 2 * time.Hour

// OutputEvent is one streamed event for a running command
type OutputEvent struct {
	CommandID  string `json:"command_id"`
	OutputType string `json:"output_type"`
	Content    string `json:"content,omitempty"`
	ExitCode   int    `json:"exit_code,omitempty"`
}

// Sink receives routed output on behalf of the owning session. The workspace
// state store implements this.
type Sink interface {
	AppendOutput(sessionID, content string)
	ClearOutput(sessionID string)
	SetRunning(sessionID string, running bool)
}

// Router owns the command-to-session bookkeeping
type Router struct {
	mu             sync.Mutex
	commandSession map[string]string    // command id -> owning session id
	sessionCommand map[string]string    // session id -> in-flight command id
	startTimes     map[string]time.Time // command id -> submission time
	staleAfter     time.Duration
	sink           Sink

	stopOnce sync.Once
	stop     chan struct{}
}

// Options tunes router behavior; zero values take defaults
type Options struct {
	StaleAfter time.Duration
}

// New creates a router delivering to sink
func New(sink Sink, opts Options) *Router {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	return &Router{
		commandSession: make(map[string]string),
		sessionCommand: make(map[string]string),
		startTimes:     make(map[string]time.Time),
		staleAfter:     opts.StaleAfter,
		sink:           sink,
		stop:           make(chan struct{}),
	}
}

// Begin registers a fresh command id for sessionID and marks the session
// running. The mapping is recorded before Begin returns, so it exists before
// the async dispatch is issued and no output event can race ahead of it.
func (r *Router) Begin(sessionID string) string {
	commandID := uuid.New().String()
	r.BeginWithID(sessionID, commandID)
	return commandID
}

// BeginWithID registers a caller-supplied command id for sessionID
func (r *Router) BeginWithID(sessionID, commandID string) {
	r.mu.Lock()
	r.commandSession[commandID] = sessionID
	r.sessionCommand[sessionID] = commandID
	r.startTimes[commandID] = time.Now()
	r.mu.Unlock()

	r.sink.SetRunning(sessionID, true)
}

// SessionFor returns the owning session for a command id
func (r *Router) SessionFor(commandID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessionID, ok := r.commandSession[commandID]
	return sessionID, ok
}

// CommandFor returns the in-flight command id for a session
func (r *Router) CommandFor(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	commandID, ok := r.sessionCommand[sessionID]
	return commandID, ok
}

// InFlight returns the number of commands awaiting an exit event
func (r *Router) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commandSession)
}

// HandleOutput routes one streamed event to its owning session. Events for
// unknown command ids signal a backend desync; they are logged and dropped.
func (r *Router) HandleOutput(ev OutputEvent) {
	r.mu.Lock()
	sessionID, ok := r.commandSession[ev.CommandID]
	r.mu.Unlock()

	if !ok {
		logging.Warn("Output for unknown command dropped",
			"commandId", ev.CommandID, "outputType", ev.OutputType)
		return
	}

	switch ev.OutputType {
	case OutputExit:
		r.finish(ev.CommandID, sessionID)
		logging.Debug("Command finished",
			"commandId", ev.CommandID, "sessionId", sessionID, "exitCode", ev.ExitCode)

	case OutputStdout, OutputStderr:
		content := ev.Content
		if hasClearScreen(content) {
			r.sink.ClearOutput(sessionID)
			content = stripClearScreen(content)
		}
		if content != "" {
			r.sink.AppendOutput(sessionID, content)
		}

	default:
		logging.Warn("Unknown output type", "outputType", ev.OutputType, "commandId", ev.CommandID)
	}
}

// finish clears all bookkeeping for a completed command
func (r *Router) finish(commandID, sessionID string) {
	r.mu.Lock()
	delete(r.commandSession, commandID)
	delete(r.startTimes, commandID)
	if r.sessionCommand[sessionID] == commandID {
		delete(r.sessionCommand, sessionID)
	}
	r.mu.Unlock()

	r.sink.SetRunning(sessionID, false)
}

// ForceIdle drops any in-flight command for sessionID and marks it idle.
// Used when observed process state contradicts the cached running flag, or
// after a confirmed kill.
func (r *Router) ForceIdle(sessionID string) {
	r.mu.Lock()
	commandID, ok := r.sessionCommand[sessionID]
	if ok {
		delete(r.sessionCommand, sessionID)
		delete(r.commandSession, commandID)
		delete(r.startTimes, commandID)
	}
	r.mu.Unlock()

	r.sink.SetRunning(sessionID, false)
}

// SweepStale expires commands older than the stale TTL and returns the
// expired command ids. A lost exit event otherwise leaves the session
// running forever.
func (r *Router) SweepStale(now time.Time) []string {
	r.mu.Lock()
	var expired []string
	for commandID, started := range r.startTimes {
		if now.Sub(started) > r.staleAfter {
			expired = append(expired, commandID)
		}
	}
	sessions := make([]string, 0, len(expired))
	for _, commandID := range expired {
		sessionID := r.commandSession[commandID]
		delete(r.commandSession, commandID)
		delete(r.startTimes, commandID)
		if r.sessionCommand[sessionID] == commandID {
			delete(r.sessionCommand, sessionID)
		}
		sessions = append(sessions, sessionID)
	}
	r.mu.Unlock()

	for i, sessionID := range sessions {
		logging.Warn("Stale command expired", "commandId", expired[i], "sessionId", sessionID)
		r.sink.SetRunning(sessionID, false)
	}
	return expired
}

// StartSweeper runs SweepStale periodically until Close
func (r *Router) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.SweepStale(time.Now())
			case <-r.stop:
				return
			}
		}
	}()
}

// Close stops the sweeper
func (r *Router) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// clearSequences are the escape sequences treated as a full-screen clear
var clearSequences = []string{
	"\x1b[2J", // erase display
	"\x1b[3J", // erase display + scrollback
	"\x1bc",   // full reset
}

func hasClearScreen(content string) bool {
	for _, seq := range clearSequences {
		if strings.Contains(content, seq) {
			return true
		}
	}
	return false
}

// stripClearScreen removes clear sequences and anything before the last one;
// content preceding a clear was wiped from the screen anyway
func stripClearScreen(content string) string {
	last := -1
	width := 0
	for _, seq := range clearSequences {
		if idx := strings.LastIndex(content, seq); idx > last {
			last = idx
			width = len(seq)
		}
	}
	if last < 0 {
		return content
	}
	return content[last+width:]
}
