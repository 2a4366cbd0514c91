package agent

import (
	"testing"
	"time"
)

func TestSpinnerMeansWorking(t *testing.T) {
	d := NewDetector()

	status, changed := d.Analyze("s1", []byte("\x1b[K⠋ thinking"))
	if status != StatusWorking {
		t.Errorf("status = %s, want working", status)
	}
	if !changed {
		t.Error("first spinner chunk must report a change")
	}

	// Same status again is not a change
	_, changed = d.Analyze("s1", []byte("⠙ thinking"))
	if changed {
		t.Error("repeated working status must not report a change")
	}
}

func TestQuestionMeansNeedsAction(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		data string
	}{
		{"yes/no", "Apply this change? (y/N)"},
		{"numbered menu", "Choose an option:\n[1] keep\n[2] discard"},
		{"permission", "Requesting permission to edit files"},
		{"press enter", "Press enter to continue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := d.Analyze("q-"+tt.name, []byte(tt.data))
			if status != StatusNeedsAction {
				t.Errorf("status = %s, want needs_action", status)
			}
		})
	}
}

func TestPromptMeansIdle(t *testing.T) {
	d := NewDetector()

	status, _ := d.Analyze("s1", []byte("all tasks finished\n> "))
	if status != StatusIdle {
		t.Errorf("status = %s, want idle", status)
	}
}

func TestPromptDetectionStripsANSI(t *testing.T) {
	d := NewDetector()

	status, _ := d.Analyze("s1", []byte("\x1b[32m\x1b[0m\n\x1b[1m> \x1b[0m"))
	if status != StatusIdle {
		t.Errorf("status = %s, want idle", status)
	}
}

func TestWorkingHeldBetweenSpinnerFrames(t *testing.T) {
	d := NewDetector()

	d.Analyze("s1", []byte("⠋"))
	status, _ := d.Analyze("s1", []byte("reading files..."))
	if status != StatusWorking {
		t.Errorf("status = %s, want working to be held between frames", status)
	}
}

func TestCompletionSummaryAfterSpinnerGoesIdle(t *testing.T) {
	d := NewDetector()

	d.Analyze("s1", []byte("⠋"))

	// Backdate the spinner so the settle window has elapsed
	d.mu.Lock()
	d.sessions["s1"].lastSpinner = time.Now().Add(-5 * time.Second)
	d.mu.Unlock()

	status, _ := d.Analyze("s1", []byte("Done in 42s. Total cost: $0.12"))
	if status != StatusIdle {
		t.Errorf("status = %s, want idle after completion summary", status)
	}
}

func TestRemoveAndReset(t *testing.T) {
	d := NewDetector()

	d.Analyze("s1", []byte("⠋"))
	if d.Get("s1") != StatusWorking {
		t.Fatal("setup failed")
	}

	d.Reset("s1")
	if d.Get("s1") != StatusNone {
		t.Errorf("after reset status = %s, want none", d.Get("s1"))
	}

	d.Remove("s1")
	if d.Get("s1") != StatusNone {
		t.Errorf("after remove status = %s, want none", d.Get("s1"))
	}
}
