package term

import (
	"strings"
	"sync"
)

// Scrollback is a bounded line buffer preserving terminal content while the
// owning view is detached. Oldest lines are dropped once depth is exceeded.
type Scrollback struct {
	lines   []string
	partial strings.Builder
	depth   int
	mu      sync.Mutex
}

// NewScrollback creates a scrollback buffer retaining at most depth lines
func NewScrollback(depth int) *Scrollback {
	if depth <= 0 {
		depth = DefaultScrollbackDepth
	}
	return &Scrollback{depth: depth}
}

// Append adds raw terminal output to the buffer, splitting on newlines.
// Carriage returns are kept as-is; the buffer stores bytes, not cells.
func (s *Scrollback) Append(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rest := string(p)
	for {
		idx := strings.IndexByte(rest, '\n')
		if idx < 0 {
			s.partial.WriteString(rest)
			return
		}
		s.partial.WriteString(rest[:idx])
		s.lines = append(s.lines, s.partial.String())
		s.partial.Reset()
		rest = rest[idx+1:]

		if len(s.lines) > s.depth {
			// Drop in chunks so appends stay amortized O(1)
			drop := len(s.lines) - s.depth
			s.lines = append([]string(nil), s.lines[drop:]...)
		}
	}
}

// Lines returns a copy of the completed lines plus any partial tail
func (s *Scrollback) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.lines)+1)
	out = append(out, s.lines...)
	if s.partial.Len() > 0 {
		out = append(out, s.partial.String())
	}
	return out
}

// String returns the buffered content joined with newlines
func (s *Scrollback) String() string {
	return strings.Join(s.Lines(), "\n")
}

// Len returns the number of buffered lines including a partial tail
func (s *Scrollback) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.lines)
	if s.partial.Len() > 0 {
		n++
	}
	return n
}

// Clear discards all buffered content
func (s *Scrollback) Clear() {
	s.mu.Lock()
	s.lines = nil
	s.partial.Reset()
	s.mu.Unlock()
}
