package tabs

import "testing"

func TestClassification(t *testing.T) {
	tests := []struct {
		name     string
		tabType  Type
		mounted  bool
		multiple bool
	}{
		{name: "chat is stateful", tabType: TypeChat, mounted: true, multiple: true},
		{name: "terminal is stateful", tabType: TypeTerminal, mounted: true, multiple: true},
		{name: "editor is stateful", tabType: TypeEditor, mounted: true, multiple: true},
		{name: "webview is stateful", tabType: TypeWebview, mounted: true, multiple: true},
		{name: "file is stateless singleton", tabType: TypeFile, mounted: false, multiple: false},
		{name: "diff is stateless singleton", tabType: TypeDiff, mounted: false, multiple: false},
		{name: "git is stateless singleton", tabType: TypeGit, mounted: false, multiple: false},
		{name: "settings is stateless singleton", tabType: TypeSettings, mounted: false, multiple: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldKeepMounted(tt.tabType); got != tt.mounted {
				t.Errorf("ShouldKeepMounted(%s) = %v, want %v", tt.tabType, got, tt.mounted)
			}
			if got := IsStateless(tt.tabType); got == tt.mounted {
				t.Errorf("IsStateless(%s) = %v, must be inverse of stateful", tt.tabType, got)
			}
			if got := SupportsMultipleInstances(tt.tabType); got != tt.multiple {
				t.Errorf("SupportsMultipleInstances(%s) = %v, want %v", tt.tabType, got, tt.multiple)
			}
		})
	}
}

func TestDiffThenFileConvergesToOneTab(t *testing.T) {
	m := NewManager()

	diff := m.OpenDiff("ws1", "main.go", "HEAD")
	if diff.DiffBase != "HEAD" {
		t.Fatalf("diff base = %q, want HEAD", diff.DiffBase)
	}

	file := m.OpenFile("ws1", "main.go")

	if len(m.List()) != 1 {
		t.Fatalf("tabs = %d, want 1", len(m.List()))
	}
	if file.ID != diff.ID {
		t.Error("conversion must reuse the same tab record")
	}
	if file.Type != TypeFile {
		t.Errorf("type = %s, want file", file.Type)
	}
	if file.DiffBase != "" {
		t.Errorf("diff fields not cleared: base = %q", file.DiffBase)
	}
}

func TestFileThenDiffConvertsInPlace(t *testing.T) {
	m := NewManager()

	file := m.OpenFile("ws1", "main.go")
	diff := m.OpenDiff("ws1", "other.go", "HEAD~1")

	if len(m.List()) != 1 {
		t.Fatalf("tabs = %d, want 1", len(m.List()))
	}
	if diff.ID != file.ID {
		t.Error("conversion must reuse the same tab record")
	}
	if diff.Type != TypeDiff || diff.FilePath != "other.go" || diff.DiffBase != "HEAD~1" {
		t.Errorf("converted tab = %+v", diff)
	}
}

func TestGenericOpenSharesFileDiffSlot(t *testing.T) {
	m := NewManager()

	diff := m.OpenDiff("ws1", "main.go", "HEAD")
	file := m.Open(Tab{Type: TypeFile, WorkspaceID: "ws1", FilePath: "main.go"})

	if len(m.List()) != 1 {
		t.Fatalf("tabs = %d, want 1 (file/diff must share one slot)", len(m.List()))
	}
	if file.ID != diff.ID {
		t.Error("generic open must reuse the workspace's file/diff slot")
	}
	if file.Type != TypeFile || file.DiffBase != "" {
		t.Errorf("converted tab = %+v", file)
	}

	back := m.Open(Tab{Type: TypeDiff, WorkspaceID: "ws1", FilePath: "main.go", DiffBase: "HEAD~1"})
	if len(m.List()) != 1 || back.ID != diff.ID {
		t.Errorf("tabs = %d, id match = %v, want the same single slot", len(m.List()), back.ID == diff.ID)
	}
	if back.DiffBase != "HEAD~1" {
		t.Errorf("diff base = %q, want HEAD~1", back.DiffBase)
	}
}

func TestFileSlotIsPerWorkspace(t *testing.T) {
	m := NewManager()

	a := m.OpenFile("ws1", "main.go")
	b := m.OpenFile("ws2", "main.go")

	if a.ID == b.ID {
		t.Error("file slots must not be shared across workspaces")
	}
	if len(m.List()) != 2 {
		t.Errorf("tabs = %d, want 2", len(m.List()))
	}
}

func TestSingletonOpenReusesExisting(t *testing.T) {
	m := NewManager()

	a := m.Open(Tab{Type: TypeGit, WorkspaceID: "ws1"})
	b := m.Open(Tab{Type: TypeGit, WorkspaceID: "ws1"})

	if a.ID != b.ID {
		t.Error("singleton tab type must reuse the existing instance")
	}
	if m.ActiveID() != a.ID {
		t.Error("reopening a singleton should activate it")
	}
}

func TestMultiInstanceTypesStack(t *testing.T) {
	m := NewManager()

	a := m.Open(Tab{Type: TypeTerminal, WorkspaceID: "ws1"})
	b := m.Open(Tab{Type: TypeTerminal, WorkspaceID: "ws1"})

	if a.ID == b.ID {
		t.Error("terminal tabs must support multiple instances")
	}
}

func TestCloseBlockedByUnsavedChanges(t *testing.T) {
	m := NewManager()

	tab := m.Open(Tab{Type: TypeEditor, WorkspaceID: "ws1"})
	m.SetUnsaved(tab.ID, true)

	if m.Close(tab.ID) {
		t.Error("close must be refused while unsaved changes exist")
	}
	m.SetUnsaved(tab.ID, false)
	if !m.Close(tab.ID) {
		t.Error("close should succeed once changes are saved")
	}
}

func TestCloseWorkspaceDropsItsTabs(t *testing.T) {
	m := NewManager()

	m.Open(Tab{Type: TypeTerminal, WorkspaceID: "ws1"})
	keep := m.Open(Tab{Type: TypeTerminal, WorkspaceID: "ws2"})
	m.OpenFile("ws1", "main.go")

	m.CloseWorkspace("ws1")

	list := m.List()
	if len(list) != 1 || list[0].ID != keep.ID {
		t.Errorf("tabs after close = %+v", list)
	}
	if m.ActiveID() != keep.ID {
		t.Errorf("active = %q, want %q", m.ActiveID(), keep.ID)
	}
}
