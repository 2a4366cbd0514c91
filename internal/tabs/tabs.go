// Package tabs classifies tab kinds for mount lifecycle decisions and
// manages the open tab set. Stateful tabs stay mounted while hidden so
// scrollback, unsaved edits, and live process output survive tab switches;
// stateless tabs are cheap to rebuild and may unmount.
package tabs

import (
	"sync"

	"codedeck/internal/logging"

	"github.com/google/uuid"
)

// Type discriminates tab kinds
type Type string

const (
	TypeChat     Type = "chat"
	TypeTerminal Type = "terminal"
	TypeEditor   Type = "editor"
	TypeWebview  Type = "webview"
	TypeFile     Type = "file"
	TypeDiff     Type = "diff"
	TypeGit      Type = "git"
	TypeSettings Type = "settings"
)

// statefulTypes must remain mounted (hidden, not destroyed) while inactive
var statefulTypes = map[Type]bool{
	TypeChat:     true,
	TypeTerminal: true,
	TypeEditor:   true,
	TypeWebview:  true,
}

// singletonTypes allow at most one instance per workspace. File and diff
// views share one slot on top of that; see Manager.OpenFile/OpenDiff.
var singletonTypes = map[Type]bool{
	TypeFile:     true,
	TypeDiff:     true,
	TypeGit:      true,
	TypeSettings: true,
}

// ShouldKeepMounted reports whether a tab type must stay mounted when hidden
func ShouldKeepMounted(t Type) bool {
	return statefulTypes[t]
}

// IsStateless reports whether a tab type is safe to unmount when hidden
func IsStateless(t Type) bool {
	return !statefulTypes[t]
}

// SupportsMultipleInstances reports whether more than one tab of this type
// may exist per workspace
func SupportsMultipleInstances(t Type) bool {
	return !singletonTypes[t]
}

// Tab is one addressable UI unit
type Tab struct {
	ID                string `json:"id"`
	Type              Type   `json:"type"`
	Title             string `json:"title"`
	WorkspaceID       string `json:"workspaceId,omitempty"`
	ProjectPath       string `json:"projectPath,omitempty"`
	FilePath          string `json:"filePath,omitempty"`
	DiffBase          string `json:"diffBase,omitempty"` // diff tabs only
	Status            string `json:"status,omitempty"`
	HasUnsavedChanges bool   `json:"hasUnsavedChanges"`
}

// Manager owns the open tab set
type Manager struct {
	mu       sync.RWMutex
	tabs     []*Tab
	activeID string
}

// NewManager creates an empty tab manager
func NewManager() *Manager {
	return &Manager{}
}

// List returns the open tabs in order
func (m *Manager) List() []*Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Tab, len(m.tabs))
	copy(out, m.tabs)
	return out
}

// Get returns a tab by id, or nil
func (m *Manager) Get(id string) *Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.find(id)
}

func (m *Manager) find(id string) *Tab {
	for _, t := range m.tabs {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ActiveID returns the active tab id
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// Activate makes a tab active; unknown ids are ignored
func (m *Manager) Activate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(id) != nil {
		m.activeID = id
	}
}

// Open adds a tab, reusing an existing singleton of the same type and
// workspace when the type forbids multiple instances. File and diff tabs
// go through the workspace's shared slot no matter which path opened them.
// Returns the live tab.
func (m *Manager) Open(tab Tab) *Tab {
	switch tab.Type {
	case TypeFile:
		return m.openSlot(tab.WorkspaceID, TypeFile, tab.FilePath, "")
	case TypeDiff:
		return m.openSlot(tab.WorkspaceID, TypeDiff, tab.FilePath, tab.DiffBase)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !SupportsMultipleInstances(tab.Type) {
		for _, existing := range m.tabs {
			if existing.Type == tab.Type && existing.WorkspaceID == tab.WorkspaceID {
				m.activeID = existing.ID
				return existing
			}
		}
	}

	t := tab
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	m.tabs = append(m.tabs, &t)
	m.activeID = t.ID
	return &t
}

// OpenFile opens (or converts) the workspace's shared file/diff slot into a
// file view. An existing diff tab for the workspace is converted in place
// with diff fields cleared; a second tab is never created.
func (m *Manager) OpenFile(workspaceID, filePath string) *Tab {
	return m.openSlot(workspaceID, TypeFile, filePath, "")
}

// OpenDiff opens (or converts) the workspace's shared file/diff slot into a
// diff view against base.
func (m *Manager) OpenDiff(workspaceID, filePath, base string) *Tab {
	return m.openSlot(workspaceID, TypeDiff, filePath, base)
}

// openSlot finds the single file/diff slot for the workspace and converts
// the tab record in place, preserving its id
func (m *Manager) openSlot(workspaceID string, target Type, filePath, diffBase string) *Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slot *Tab
	for _, t := range m.tabs {
		if t.WorkspaceID != workspaceID {
			continue
		}
		if t.Type == TypeFile || t.Type == TypeDiff {
			slot = t
			break
		}
	}

	if slot == nil {
		slot = &Tab{
			ID:          uuid.New().String(),
			WorkspaceID: workspaceID,
		}
		m.tabs = append(m.tabs, slot)
	} else if slot.Type != target {
		logging.Debug("Converting file/diff slot",
			"workspaceId", workspaceID, "from", string(slot.Type), "to", string(target))
	}

	slot.Type = target
	slot.FilePath = filePath
	slot.Title = filePath
	if target == TypeDiff {
		slot.DiffBase = diffBase
	} else {
		slot.DiffBase = ""
	}
	m.activeID = slot.ID
	return slot
}

// Close removes a tab. Returns false if the tab has unsaved changes; the
// caller surfaces a confirmation instead.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range m.tabs {
		if t.ID != id {
			continue
		}
		if t.HasUnsavedChanges {
			return false
		}
		m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
		if m.activeID == id {
			m.activeID = ""
			if len(m.tabs) > 0 {
				m.activeID = m.tabs[len(m.tabs)-1].ID
			}
		}
		return true
	}
	return false
}

// CloseWorkspace removes every tab belonging to a workspace
func (m *Manager) CloseWorkspace(workspaceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tabs[:0]
	for _, t := range m.tabs {
		if t.WorkspaceID != workspaceID {
			kept = append(kept, t)
		}
	}
	m.tabs = kept
	if m.find(m.activeID) == nil {
		m.activeID = ""
		if len(m.tabs) > 0 {
			m.activeID = m.tabs[len(m.tabs)-1].ID
		}
	}
}

// SetUnsaved flags a tab's unsaved-changes state
func (m *Manager) SetUnsaved(id string, unsaved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.find(id); t != nil {
		t.HasUnsavedChanges = unsaved
	}
}

// SetStatus updates a tab's status text
func (m *Manager) SetStatus(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.find(id); t != nil {
		t.Status = status
	}
}
