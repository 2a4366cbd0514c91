// Package agent watches terminal output streams and infers whether the
// coding agent running inside is working, idle, or waiting on the user.
// Detection is heuristic: braille spinner glyphs mean working, known
// question phrasings mean needs_action, a prompt line means idle.
package agent

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Status is the inferred agent state for one session
type Status string

const (
	StatusNone        Status = "none"
	StatusWorking     Status = "working"
	StatusIdle        Status = "idle"
	StatusNeedsAction Status = "needs_action"
)

const (
	// spinnerHold keeps StatusWorking alive between spinner frames
	spinnerHold = 1500 * time.Millisecond
	// settleAfter is how long after the last spinner frame output is
	// re-examined for a prompt or completion summary
	settleAfter = 2 * time.Second
)

type sessionState struct {
	status       Status
	lastSpinner  time.Time
	lastActivity time.Time
	idleStreak   int
}

// Detector tracks per-session agent state from raw output chunks
type Detector struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState

	questionPatterns []*regexp.Regexp
}

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// NewDetector creates a detector with the built-in question patterns
func NewDetector() *Detector {
	return &Detector{
		sessions: make(map[string]*sessionState),
		questionPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\([Yy]/[Nn]\)`),
			regexp.MustCompile(`(?i)\(yes/no\)`),
			regexp.MustCompile(`\[[0-9]+\]`), // numbered option menus
			regexp.MustCompile(`(?i)allow|deny|accept|reject`),
			regexp.MustCompile(`(?i)press enter|hit enter`),
			regexp.MustCompile(`(?i)continue\?`),
			regexp.MustCompile(`(?i)proceed\?`),
			regexp.MustCompile(`(?i)would you like`),
			regexp.MustCompile(`(?i)do you want`),
			regexp.MustCompile(`(?i)permission`),
			regexp.MustCompile(`(?i)approve|approving`),
		},
	}
}

// Analyze feeds one output chunk for a session and returns the resulting
// status plus whether it changed from the previous call.
func (d *Detector) Analyze(sessionID string, data []byte) (Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.sessions[sessionID]
	if !ok {
		state = &sessionState{status: StatusNone}
		d.sessions[sessionID] = state
	}

	old := state.status
	state.lastActivity = time.Now()

	if hasSpinner(data) {
		state.lastSpinner = time.Now()
		state.status = StatusWorking
		state.idleStreak = 0
		return state.status, state.status != old
	}

	if d.hasQuestion(data) {
		state.status = StatusNeedsAction
		state.idleStreak = 0
		return state.status, state.status != old
	}

	sinceSpinner := time.Since(state.lastSpinner)
	wasWorking := state.status == StatusWorking || !state.lastSpinner.IsZero()

	// Spinner stopped a while ago and output now carries a prompt or a
	// run summary: the agent finished and is waiting for input.
	if wasWorking && sinceSpinner > settleAfter {
		if hasPrompt(data) || looksLikeCompletion(data) {
			state.status = StatusIdle
			state.idleStreak++
			return state.status, state.status != old
		}
	}

	if hasPrompt(data) {
		state.status = StatusIdle
		state.idleStreak++
		return state.status, state.status != old
	}

	// Between spinner frames output often carries plain text; hold the
	// working status briefly so it does not flicker.
	if !state.lastSpinner.IsZero() && sinceSpinner < spinnerHold {
		state.status = StatusWorking
		return state.status, state.status != old
	}

	state.idleStreak = 0
	return state.status, state.status != old
}

// Get returns the current status for a session
func (d *Detector) Get(sessionID string) Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if state, ok := d.sessions[sessionID]; ok {
		return state.status
	}
	return StatusNone
}

// Remove drops tracking for a closed session
func (d *Detector) Remove(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
}

// Reset clears a session back to StatusNone, keeping the tracking entry
func (d *Detector) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if state, ok := d.sessions[sessionID]; ok {
		state.status = StatusNone
		state.lastSpinner = time.Time{}
		state.idleStreak = 0
	}
}

// hasSpinner detects braille spinner glyphs (U+2800..U+28FF). In UTF-8 the
// range encodes as 0xE2 0xA0..0xA3 0x80..0xBF. A spinner frame is a small
// chunk or one paired with a clear-line sequence.
func hasSpinner(data []byte) bool {
	hasClearLine := bytes.Contains(data, []byte("\x1b[K")) ||
		bytes.Contains(data, []byte("\x1b[2K"))

	hasBraille := false
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0xE2 && data[i+1] >= 0xA0 && data[i+1] <= 0xA3 {
			hasBraille = true
			break
		}
	}

	return hasBraille && (hasClearLine || len(data) < 100)
}

func (d *Detector) hasQuestion(data []byte) bool {
	text := string(data)
	for _, pattern := range d.questionPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// hasPrompt reports whether the chunk ends on (or contains) the agent's
// "> " input prompt after stripping ANSI sequences
func hasPrompt(data []byte) bool {
	cleaned := ansiRegex.ReplaceAllString(string(data), "")

	if strings.Contains(cleaned, "\n> ") {
		return true
	}
	if strings.HasPrefix(cleaned, "> ") {
		return true
	}

	trimmed := strings.TrimRight(cleaned, " \t\r\n")
	if trimmed == ">" {
		return true
	}
	if strings.HasSuffix(trimmed, "\n>") || strings.HasSuffix(trimmed, "\r>") {
		return true
	}

	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if line == ">" || strings.HasPrefix(line, "> ") {
			return true
		}
	}
	return false
}

// looksLikeCompletion matches the cost/timing summary the agent prints at
// the end of a run. Weak individually, so two or more indicators are needed.
func looksLikeCompletion(data []byte) bool {
	text := strings.ToLower(string(data))
	indicators := []string{"cost", "token", "total", "done in", "completed in", "elapsed"}

	matches := 0
	for _, indicator := range indicators {
		if strings.Contains(text, indicator) {
			matches++
		}
	}
	return matches >= 2
}
