package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codedeck/internal/agent"
	"codedeck/internal/docker"
	"codedeck/internal/files"
	"codedeck/internal/git"
	"codedeck/internal/logging"
	"codedeck/internal/remote"
	"codedeck/internal/router"
	"codedeck/internal/rpc"
	"codedeck/internal/tabs"
	"codedeck/internal/term"
	"codedeck/internal/terminal"
	"codedeck/internal/workspace"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

const (
	defaultBackendURL = "ws://127.0.0.1:8765/ws"

	reconcileInterval = 60 * time.Second
)

// App struct
type App struct {
	ctx             context.Context
	store           *workspace.Store
	registry        *term.Registry
	terminalManager *terminal.Manager
	cmdRouter       *router.Router
	backend         *rpc.Client
	agentDetector   *agent.Detector
	gitManager      *git.Manager
	dockerManager   *docker.Manager
	fileScanner     *files.Scanner
	tabManager      *tabs.Manager
	remoteServer    *remote.Server

	prefs   preferences
	prefsMu sync.Mutex

	reconcileStop chan struct{}
	mu            sync.RWMutex
}

// NewApp creates a new App
func NewApp() *App {
	return &App{}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	// Initialize logger first
	if err := logging.InitDefault(); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
	} else {
		logging.Info("Application starting", "version", "1.0.0")
	}

	// Workspace state store
	store, err := workspace.NewStore()
	if err != nil {
		logging.Error("Failed to initialize workspace store", "error", err)
	} else {
		a.store = store
		a.store.SetContext(ctx)
	}

	// Terminal instance registry keeps scrollback across view remounts
	a.registry = term.NewRegistry(term.RegistryOptions{})
	a.registry.StartJanitor(term.DefaultJanitorInterval)

	// PTY session manager
	a.terminalManager = terminal.NewManager()
	a.terminalManager.SetOutputHandler(a.onSessionOutput)
	a.terminalManager.SetExitHandler(a.onSessionExit)

	// Command router delivers backend output to the owning session
	a.cmdRouter = router.New(a.store, router.Options{})
	a.cmdRouter.StartSweeper(10 * time.Minute)

	// Agent status detector
	a.agentDetector = agent.NewDetector()

	// Backend RPC client
	backendURL := os.Getenv("CODEDECK_BACKEND")
	if backendURL == "" {
		backendURL = defaultBackendURL
	}
	a.backend = rpc.NewClient(backendURL)
	a.subscribeBackendEvents()
	a.backend.SetConnectHandler(func() {
		// Events may have been lost while disconnected
		a.reconcile()
		runtime.EventsEmit(a.ctx, "backend-connected", nil)
	})
	a.backend.Start()

	// Git manager
	a.gitManager = git.NewManager()

	// Docker manager
	dockerMgr, err := docker.NewManager()
	if err != nil {
		logging.Warn("Docker not available", "error", err)
	} else {
		a.dockerManager = dockerMgr
		logging.Info("Docker manager initialized")
	}

	// File scanner for picker/structure views
	a.fileScanner = files.NewScanner()

	// Tab manager
	a.tabManager = tabs.NewManager()

	// Remote access server (started on demand)
	a.remoteServer = remote.NewServer(a.terminalManager)
	a.remoteServer.SetWorkspaceHandler(a)
	a.remoteServer.SetApprovedChangeCallback(a.saveApprovedClients)
	a.loadApprovedClients()

	a.loadPreferences()

	// Periodic reconciliation; the webview also triggers it on window focus
	a.reconcileStop = make(chan struct{})
	go a.reconcileLoop()
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	if a.reconcileStop != nil {
		close(a.reconcileStop)
	}
	if a.remoteServer != nil && a.remoteServer.IsRunning() {
		a.remoteServer.Stop()
	}
	if a.backend != nil {
		a.backend.Close()
	}
	if a.cmdRouter != nil {
		a.cmdRouter.Close()
	}
	if a.terminalManager != nil {
		a.terminalManager.CloseAll()
	}
	if a.registry != nil {
		a.registry.Close()
	}
	if a.dockerManager != nil {
		a.dockerManager.Close()
	}
	if a.store != nil {
		a.store.SaveSync()
	}
}

// ============================================
// Backend event wiring
// ============================================

func (a *App) subscribeBackendEvents() {
	routed := func(data json.RawMessage) {
		var ev rpc.CommandOutputEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logging.Warn("Malformed command output event dropped", "error", err)
			return
		}
		a.cmdRouter.HandleOutput(router.OutputEvent{
			CommandID:  ev.CommandID,
			OutputType: ev.OutputType,
			Content:    ev.Content,
			ExitCode:   ev.ExitCode,
		})
	}
	a.backend.Subscribe(rpc.EventTerminalOutput, routed)
	a.backend.Subscribe(rpc.EventClaudeOutput, routed)

	a.backend.Subscribe(rpc.EventClaudeError, func(data json.RawMessage) {
		var ev rpc.CommandOutputEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logging.Warn("Malformed error event dropped", "error", err)
			return
		}
		a.cmdRouter.HandleOutput(router.OutputEvent{
			CommandID:  ev.CommandID,
			OutputType: router.OutputStderr,
			Content:    ev.Content,
		})
	})

	a.backend.Subscribe(rpc.EventClaudeComplete, func(data json.RawMessage) {
		var ev rpc.CommandOutputEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logging.Warn("Malformed complete event dropped", "error", err)
			return
		}
		a.cmdRouter.HandleOutput(router.OutputEvent{
			CommandID:  ev.CommandID,
			OutputType: router.OutputExit,
			ExitCode:   ev.ExitCode,
		})
	})

	// Progress and change notifications pass straight through to the webview
	for _, event := range []string{
		rpc.EventSSHSyncProgress,
		rpc.EventAutoSyncStarted,
		rpc.EventAutoSyncCompleted,
		rpc.EventAutoSyncFailed,
	} {
		event := event
		a.backend.Subscribe(event, func(data json.RawMessage) {
			runtime.EventsEmit(a.ctx, event, json.RawMessage(data))
		})
	}

	a.backend.Subscribe(rpc.EventGitChanged, func(data json.RawMessage) {
		var ev rpc.GitChangedEvent
		if err := json.Unmarshal(data, &ev); err == nil && ev.Cwd != "" {
			a.fileScanner.Invalidate(ev.Cwd)
		}
		runtime.EventsEmit(a.ctx, rpc.EventGitChanged, json.RawMessage(data))
	})
}

func (a *App) onSessionOutput(id string, data []byte) {
	// Infer agent status from the raw stream
	if a.agentDetector != nil {
		status, changed := a.agentDetector.Analyze(id, data)
		if changed && status != agent.StatusNone {
			runtime.EventsEmit(a.ctx, "agent-status", map[string]string{
				"sessionId": id,
				"status":    string(status),
			})
		}
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	runtime.EventsEmit(a.ctx, "session-output", map[string]string{
		"sessionId": id,
		"data":      encoded,
	})

	if a.remoteServer != nil && a.remoteServer.IsRunning() {
		a.remoteServer.BroadcastOutput(id, encoded)
	}
}

func (a *App) onSessionExit(id string) {
	if a.agentDetector != nil {
		a.agentDetector.Remove(id)
	}
	// The shell is gone; any command flagged on this session is orphaned
	if a.cmdRouter != nil {
		a.cmdRouter.ForceIdle(id)
	}
	runtime.EventsEmit(a.ctx, "session-exit", map[string]string{"sessionId": id})

	if a.remoteServer != nil && a.remoteServer.IsRunning() {
		a.remoteServer.BroadcastWorkspacesList()
	}
}

// ============================================
// Reconciliation
// ============================================

func (a *App) reconcileLoop() {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.reconcile()
		case <-a.reconcileStop:
			return
		}
	}
}

// reconcile clears running flags whose command no longer exists. Observed
// state wins over cached flags: a session is only considered busy when the
// router still holds its command mapping. While the backend link is down
// there is nothing to observe, so the pass is skipped entirely; the
// on-reconnect pass settles state once events can flow again.
func (a *App) reconcile() {
	if a.store == nil || a.cmdRouter == nil {
		return
	}
	if a.backend == nil || !a.backend.IsConnected() {
		return
	}

	stale := a.store.Reconcile(func(sessionID string) bool {
		_, ok := a.cmdRouter.CommandFor(sessionID)
		return ok
	})

	for _, sessionID := range stale {
		a.cmdRouter.ForceIdle(sessionID)
	}
	if len(stale) > 0 {
		logging.Info("Reconciliation cleared stale sessions", "count", len(stale))
	}
}

// ReconcileNow runs a reconciliation pass; the webview calls this on window
// focus
func (a *App) ReconcileNow() {
	a.reconcile()
}

// ============================================
// Workspace methods
// ============================================

// GetWorkspaces returns all known workspace paths
func (a *App) GetWorkspaces() []string {
	if a.store == nil {
		return []string{}
	}
	return a.store.Workspaces()
}

// OpenWorkspace loads (or lazily creates) workspace state for a path
func (a *App) OpenWorkspace(path string) *workspace.State {
	if a.store == nil {
		return nil
	}
	return a.store.CurrentState(path)
}

// SelectDirectory opens a directory picker
func (a *App) SelectDirectory() (string, error) {
	return runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select Workspace Directory",
	})
}

// GetCommandHistory returns the workspace's recent commands
func (a *App) GetCommandHistory(path string) []string {
	if a.store == nil {
		return []string{}
	}
	return a.store.History(path)
}

// ============================================
// Session methods
// ============================================

// SessionInfo for the webview
type SessionInfo struct {
	ID            string `json:"id"`
	WorkspacePath string `json:"workspacePath"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	IsPty         bool   `json:"isPty"`
	Running       bool   `json:"running"`
}

// GetSessions returns the sessions of a workspace
func (a *App) GetSessions(path string) []SessionInfo {
	if a.store == nil {
		return []SessionInfo{}
	}

	sessions := a.store.Sessions(path)
	result := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		result[i] = SessionInfo{
			ID:            sess.ID,
			WorkspacePath: path,
			Title:         sess.Title,
			Type:          sess.Type,
			IsPty:         sess.IsPty,
			Running:       a.store.IsRunning(sess.ID),
		}
	}
	return result
}

// CreateSession adds a session to a workspace. PTY-backed sessions get a
// live shell started in the workspace directory.
func (a *App) CreateSession(path, title, sessionType string, isPty bool) (*SessionInfo, error) {
	if a.store == nil {
		return nil, fmt.Errorf("workspace store not initialized")
	}

	sess := a.store.AddSession(path, title, sessionType, isPty)

	if isPty {
		if _, err := a.terminalManager.CreateWithID(sess.ID, path, sess.Title, path); err != nil {
			a.store.CloseSession(path, sess.ID)
			return nil, err
		}
	}

	if a.remoteServer != nil && a.remoteServer.IsRunning() {
		a.remoteServer.BroadcastWorkspacesList()
	}

	return &SessionInfo{
		ID:            sess.ID,
		WorkspacePath: path,
		Title:         sess.Title,
		Type:          sess.Type,
		IsPty:         sess.IsPty,
	}, nil
}

// CloseSession removes a session. The last session of a workspace cannot be
// closed; false is returned and nothing changes.
func (a *App) CloseSession(path, sessionID string) bool {
	if a.store == nil {
		return false
	}

	if !a.store.CloseSession(path, sessionID) {
		return false
	}

	a.terminalManager.Close(sessionID)
	a.agentDetector.Remove(sessionID)
	a.cmdRouter.ForceIdle(sessionID)
	a.registry.Destroy(term.InstanceKey(path, sessionID))

	if a.remoteServer != nil && a.remoteServer.IsRunning() {
		a.remoteServer.BroadcastWorkspacesList()
	}
	return true
}

// RenameSession retitles a session
func (a *App) RenameSession(path, sessionID, title string) bool {
	if a.store == nil {
		return false
	}
	ok := a.store.RenameSession(path, sessionID, title)
	if ok {
		if sess := a.terminalManager.Get(sessionID); sess != nil {
			sess.Title = title
		}
		if a.remoteServer != nil && a.remoteServer.IsRunning() {
			a.remoteServer.BroadcastWorkspacesList()
		}
	}
	return ok
}

// SetActiveSession moves the workspace's active session pointer
func (a *App) SetActiveSession(path, sessionID string) {
	if a.store != nil {
		a.store.SetActiveSession(path, sessionID)
	}
}

// ============================================
// Terminal methods
// ============================================

// AttachTerminal binds the webview's terminal view to the retained instance
// for a session, starting the PTY if it is not live yet. Returns the
// buffered scrollback so the view can repaint after a remount.
func (a *App) AttachTerminal(workspacePath, sessionID string) (string, error) {
	inst := a.registry.GetOrCreate(term.InstanceKey(workspacePath, sessionID))

	sess := a.terminalManager.Get(sessionID)
	if sess == nil {
		_, stored := a.store.FindSession(sessionID)
		if stored == nil {
			return "", fmt.Errorf("session not found: %s", sessionID)
		}
		if stored.IsPty {
			created, err := a.terminalManager.CreateWithID(sessionID, workspacePath, stored.Title, workspacePath)
			if err != nil {
				return "", err
			}
			sess = created
		}
	}
	if sess != nil {
		sess.BindInstance(inst)
	}

	return inst.Buffer().String(), nil
}

// ReleaseTerminal drops one view reference on a session's retained instance.
// The instance stays buffered until the eviction janitor reclaims it.
func (a *App) ReleaseTerminal(workspacePath, sessionID string) {
	a.registry.Release(term.InstanceKey(workspacePath, sessionID))
}

// WriteTerminal writes webview input to a PTY session
func (a *App) WriteTerminal(sessionID string, data string) error {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		decoded = []byte(data)
	}
	return a.terminalManager.Write(sessionID, decoded)
}

// ResizeTerminal resizes a PTY session
func (a *App) ResizeTerminal(sessionID string, rows, cols int) error {
	return a.terminalManager.Resize(sessionID, uint16(rows), uint16(cols))
}

// PauseTerminal pauses PTY output reading for flow control
func (a *App) PauseTerminal(sessionID string) {
	if sess := a.terminalManager.Get(sessionID); sess != nil {
		sess.Pause()
	}
}

// ResumeTerminal resumes PTY output reading
func (a *App) ResumeTerminal(sessionID string) {
	if sess := a.terminalManager.Get(sessionID); sess != nil {
		sess.Resume()
	}
}

// GetAgentStatus returns the inferred agent state for a session
func (a *App) GetAgentStatus(sessionID string) string {
	return string(a.agentDetector.Get(sessionID))
}

// ============================================
// Command methods
// ============================================

// RunCommand starts a streamed command for a session via the backend. The
// command-to-session mapping is registered before dispatch, so output events
// cannot arrive for an unknown command.
func (a *App) RunCommand(sessionID, command string) (string, error) {
	path, sess := a.store.FindSession(sessionID)
	if sess == nil {
		return "", fmt.Errorf("session not found: %s", sessionID)
	}

	a.store.RecordCommand(path, command)

	commandID := a.cmdRouter.Begin(sessionID)
	if err := a.backend.ExecuteCommandAsync(a.ctx, command, path, commandID); err != nil {
		a.cmdRouter.ForceIdle(sessionID)
		return "", err
	}
	return commandID, nil
}

// KillCommand requests cancellation of a session's in-flight command. The
// kill is advisory; the running flag clears on the exit event or the next
// reconciliation pass.
func (a *App) KillCommand(sessionID string) error {
	commandID, ok := a.cmdRouter.CommandFor(sessionID)
	if !ok {
		return fmt.Errorf("no command running for session %s", sessionID)
	}
	return a.backend.KillCommand(a.ctx, commandID)
}

// GetSessionOutput returns the accumulated command output for a session
func (a *App) GetSessionOutput(sessionID string) []string {
	if a.store == nil {
		return []string{}
	}
	return a.store.Output(sessionID)
}

// IsCommandRunning reports the session's running flag
func (a *App) IsCommandRunning(sessionID string) bool {
	if a.store == nil {
		return false
	}
	return a.store.IsRunning(sessionID)
}

// RunCommandSync runs a short command to completion via the backend
func (a *App) RunCommandSync(cwd, command string) (*rpc.ExecuteResult, error) {
	return a.backend.ExecuteCommand(a.ctx, command, cwd)
}

// ============================================
// Backend workspace methods
// ============================================

// ListBackendWorkspaces lists branch-scoped workspaces on the backend
func (a *App) ListBackendWorkspaces() ([]rpc.WorkspaceInfo, error) {
	return a.backend.ListWorkspaces(a.ctx)
}

// CreateBackendWorkspace creates a branch-scoped workspace on the backend
func (a *App) CreateBackendWorkspace(projectPath, branch string) (*rpc.WorkspaceInfo, error) {
	return a.backend.CreateWorkspace(a.ctx, projectPath, branch)
}

// DeleteBackendWorkspace removes a backend workspace. Without force the
// backend refuses to delete a dirty working copy; the error surfaces to the
// user as a confirmation prompt.
func (a *App) DeleteBackendWorkspace(id string, force bool) error {
	return a.backend.DeleteWorkspace(a.ctx, id, force)
}

// ============================================
// File methods
// ============================================

// GetWorkspaceStructure returns the workspace file tree
func (a *App) GetWorkspaceStructure(path string) (*files.Node, error) {
	return a.fileScanner.Scan(path)
}

// GetFolderHierarchy returns only the directory skeleton
func (a *App) GetFolderHierarchy(path string) (*files.Node, error) {
	return a.fileScanner.FolderHierarchy(path)
}

// SearchWorkspaceFiles searches the backend index first and falls back to
// the local cached index when the backend is unreachable
func (a *App) SearchWorkspaceFiles(path, query string, maxHits int) []files.Hit {
	if a.backend.IsConnected() {
		hits, err := a.backend.SearchFiles(a.ctx, path, query, maxHits)
		if err == nil {
			result := make([]files.Hit, len(hits))
			for i, h := range hits {
				result[i] = files.Hit{Path: h.Path, Name: filepath.Base(h.Path)}
			}
			return result
		}
		logging.Debug("Backend search failed, using local index", "error", err)
	}
	return a.fileScanner.Search(path, query, maxHits)
}

// ListDirectory lists one directory level, backend first with local fallback
func (a *App) ListDirectory(path string) ([]rpc.DirEntry, error) {
	if a.backend.IsConnected() {
		entries, err := a.backend.ListDirectory(a.ctx, path)
		if err == nil {
			return entries, nil
		}
		logging.Debug("Backend listing failed, reading locally", "error", err)
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	entries := make([]rpc.DirEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		entry := rpc.DirEntry{
			Name:  e.Name(),
			Path:  filepath.Join(path, e.Name()),
			IsDir: e.IsDir(),
		}
		if info, err := e.Info(); err == nil && !e.IsDir() {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReadFileContent reads a file for the editor
func (a *App) ReadFileContent(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// SaveFileContent writes editor content back to disk
func (a *App) SaveFileContent(filePath string, content string) error {
	return os.WriteFile(filePath, []byte(content), 0644)
}

// ============================================
// Git methods
// ============================================

// IsGitRepo checks if a path is a git repository
func (a *App) IsGitRepo(path string) bool {
	return a.gitManager.IsRepo(path)
}

// GetGitStatus summarizes working-copy state, preferring the backend view
func (a *App) GetGitStatus(path string) git.Status {
	if a.backend.IsConnected() {
		res, err := a.backend.GitStatus(a.ctx, path)
		if err == nil {
			return git.Status{
				Branch:    res.Branch,
				Staged:    res.Staged,
				Unstaged:  res.Unstaged,
				Untracked: res.Untracked,
				Clean:     res.Clean,
			}
		}
		logging.Debug("Backend git status failed, using local git", "error", err)
	}
	return a.gitManager.GetStatus(path)
}

// GetGitChangedFiles returns the change list for the git panel
func (a *App) GetGitChangedFiles(path string) ([]git.ChangedFile, error) {
	return a.gitManager.ChangedFiles(path)
}

// GetGitFileDiff returns the diff view payload for a file
func (a *App) GetGitFileDiff(repoPath, filePath string) (*git.FileDiff, error) {
	return a.gitManager.GetFileDiff(repoPath, filePath)
}

// GetGitCurrentBranch returns the current branch name
func (a *App) GetGitCurrentBranch(path string) string {
	return a.gitManager.CurrentBranch(path)
}

// GetGitHistory returns recent commits
func (a *App) GetGitHistory(path string, limit int) ([]git.CommitInfo, error) {
	return a.gitManager.CommitHistory(path, limit)
}

// ============================================
// Docker methods
// ============================================

// IsDockerAvailable checks if Docker is available
func (a *App) IsDockerAvailable() bool {
	if a.dockerManager == nil {
		return false
	}
	return a.dockerManager.IsAvailable(a.ctx)
}

// GetContainers returns all containers
func (a *App) GetContainers(all bool) ([]docker.Container, error) {
	if a.dockerManager == nil {
		return nil, fmt.Errorf("docker not available")
	}
	return a.dockerManager.ListContainers(a.ctx, all)
}

// GetWorkspaceContainers returns containers matching the workspace name
func (a *App) GetWorkspaceContainers(path string) ([]docker.Container, error) {
	if a.dockerManager == nil {
		return nil, fmt.Errorf("docker not available")
	}
	return a.dockerManager.ListForWorkspace(a.ctx, filepath.Base(path))
}

// StartContainer starts a container
func (a *App) StartContainer(id string) error {
	if a.dockerManager == nil {
		return fmt.Errorf("docker not available")
	}
	return a.dockerManager.Start(a.ctx, id)
}

// StopContainer stops a container
func (a *App) StopContainer(id string) error {
	if a.dockerManager == nil {
		return fmt.Errorf("docker not available")
	}
	return a.dockerManager.Stop(a.ctx, id)
}

// RestartContainer restarts a container
func (a *App) RestartContainer(id string) error {
	if a.dockerManager == nil {
		return fmt.Errorf("docker not available")
	}
	return a.dockerManager.Restart(a.ctx, id)
}

// GetContainerLogs returns recent container output
func (a *App) GetContainerLogs(id string) (string, error) {
	if a.dockerManager == nil {
		return "", fmt.Errorf("docker not available")
	}
	return a.dockerManager.Logs(a.ctx, id, 100)
}

// ============================================
// Tab methods
// ============================================

// GetTabs returns the open tab set
func (a *App) GetTabs() []*tabs.Tab {
	return a.tabManager.List()
}

// GetActiveTab returns the active tab id
func (a *App) GetActiveTab() string {
	return a.tabManager.ActiveID()
}

// OpenTab opens (or re-activates) a tab
func (a *App) OpenTab(tab tabs.Tab) *tabs.Tab {
	return a.tabManager.Open(tab)
}

// OpenFileTab opens the workspace's file/diff slot as a file view
func (a *App) OpenFileTab(workspaceID, filePath string) *tabs.Tab {
	return a.tabManager.OpenFile(workspaceID, filePath)
}

// OpenDiffTab opens the workspace's file/diff slot as a diff view
func (a *App) OpenDiffTab(workspaceID, filePath, base string) *tabs.Tab {
	return a.tabManager.OpenDiff(workspaceID, filePath, base)
}

// ActivateTab makes a tab active
func (a *App) ActivateTab(id string) {
	a.tabManager.Activate(id)
}

// CloseTab closes a tab; returns false when unsaved changes block it
func (a *App) CloseTab(id string) bool {
	return a.tabManager.Close(id)
}

// CloseWorkspaceTabs closes every tab belonging to a workspace
func (a *App) CloseWorkspaceTabs(workspaceID string) {
	a.tabManager.CloseWorkspace(workspaceID)
}

// SetTabUnsaved flags a tab's unsaved-changes state
func (a *App) SetTabUnsaved(id string, unsaved bool) {
	a.tabManager.SetUnsaved(id, unsaved)
}

// IsTabStateful reports whether a tab type stays mounted when hidden
func (a *App) IsTabStateful(tabType string) bool {
	return tabs.ShouldKeepMounted(tabs.Type(tabType))
}

// ============================================
// Preferences
// ============================================

type preferences struct {
	TerminalTheme    string `json:"terminalTheme"`
	TerminalFontSize int    `json:"terminalFontSize"`
}

func preferencesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codedeck", "preferences.json")
}

func (a *App) loadPreferences() {
	a.prefsMu.Lock()
	defer a.prefsMu.Unlock()

	a.prefs = preferences{TerminalTheme: "dark", TerminalFontSize: 14}

	path := preferencesPath()
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &a.prefs); err != nil {
		logging.Warn("Corrupt preferences file ignored", "error", err)
	}
}

func (a *App) savePreferences() {
	a.prefsMu.Lock()
	data, err := json.MarshalIndent(a.prefs, "", "  ")
	a.prefsMu.Unlock()
	if err != nil {
		return
	}

	path := preferencesPath()
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logging.Error("Failed to save preferences", "error", err)
	}
}

// GetTerminalTheme returns the current terminal theme name
func (a *App) GetTerminalTheme() string {
	a.prefsMu.Lock()
	defer a.prefsMu.Unlock()
	return a.prefs.TerminalTheme
}

// SetTerminalTheme updates the terminal theme
func (a *App) SetTerminalTheme(themeName string) {
	a.prefsMu.Lock()
	a.prefs.TerminalTheme = themeName
	a.prefsMu.Unlock()
	a.savePreferences()
}

// GetTerminalFontSize returns the terminal font size
func (a *App) GetTerminalFontSize() int {
	a.prefsMu.Lock()
	defer a.prefsMu.Unlock()
	return a.prefs.TerminalFontSize
}

// SetTerminalFontSize updates the terminal font size
func (a *App) SetTerminalFontSize(size int) {
	a.prefsMu.Lock()
	a.prefs.TerminalFontSize = size
	a.prefsMu.Unlock()
	a.savePreferences()
}

// ============================================
// Logging bridge
// ============================================

// Log ingests a log entry from the webview
func (a *App) Log(level, module, message string, data map[string]interface{}) {
	logging.LogFromWebview(logging.WebviewEntry{
		Level:   level,
		Module:  module,
		Message: message,
		Fields:  data,
	})
}

// IsDevMode reports whether dev logging is enabled
func (a *App) IsDevMode() bool {
	return logging.GetConfig().DevMode
}

// ============================================
// Remote access
// ============================================

// RemoteAccessStatus for the settings panel
type RemoteAccessStatus struct {
	Running bool   `json:"running"`
	Port    int    `json:"port"`
	Token   string `json:"token"`
}

// StartRemoteAccess starts the remote server and mints a short-lived token
func (a *App) StartRemoteAccess(port int) (*RemoteAccessStatus, error) {
	if a.remoteServer.IsRunning() {
		return nil, fmt.Errorf("remote access already running")
	}

	token, err := a.remoteServer.GenerateToken(24 * time.Hour)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := a.remoteServer.Start(port); err != nil {
			logging.Error("Remote access server stopped", "error", err)
		}
	}()

	return &RemoteAccessStatus{Running: true, Port: port, Token: token}, nil
}

// StopRemoteAccess stops the remote server
func (a *App) StopRemoteAccess() error {
	return a.remoteServer.Stop()
}

// GetRemoteAccessStatus returns the current remote server state
func (a *App) GetRemoteAccessStatus() *RemoteAccessStatus {
	return &RemoteAccessStatus{
		Running: a.remoteServer.IsRunning(),
		Port:    a.remoteServer.GetPort(),
		Token:   a.remoteServer.GetToken(),
	}
}

// GetRemoteAccessClients returns connected remote clients
func (a *App) GetRemoteAccessClients() []remote.ClientInfo {
	return a.remoteServer.GetClients()
}

// AddApprovedClient mints a permanent token for a named device
func (a *App) AddApprovedClient(name string) (*remote.ApprovedClient, error) {
	return a.remoteServer.AddApprovedClient(name)
}

// RemoveApprovedClient revokes a permanent token
func (a *App) RemoveApprovedClient(token string) {
	a.remoteServer.RemoveApprovedClient(token)
}

// GetApprovedClients returns all approved clients
func (a *App) GetApprovedClients() []*remote.ApprovedClient {
	return a.remoteServer.GetApprovedClients()
}

func approvedClientsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codedeck", "remote-clients.json")
}

func (a *App) loadApprovedClients() {
	path := approvedClientsPath()
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var clients []*remote.ApprovedClient
	if err := json.Unmarshal(data, &clients); err != nil {
		logging.Warn("Corrupt approved clients file ignored", "error", err)
		return
	}
	a.remoteServer.SetApprovedClients(clients)
}

func (a *App) saveApprovedClients() {
	path := approvedClientsPath()
	if path == "" {
		return
	}
	data, err := json.MarshalIndent(a.remoteServer.GetApprovedClients(), "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		logging.Error("Failed to save approved clients", "error", err)
	}
}

// ============================================
// remote.WorkspaceHandler
// ============================================

// RemoteWorkspaces returns the workspace/session tree for remote clients
func (a *App) RemoteWorkspaces() []remote.WorkspaceInfo {
	if a.store == nil {
		return []remote.WorkspaceInfo{}
	}

	paths := a.store.Workspaces()
	result := make([]remote.WorkspaceInfo, 0, len(paths))
	for _, path := range paths {
		info := remote.WorkspaceInfo{
			ID:   path,
			Name: filepath.Base(path),
			Path: path,
		}
		for _, sess := range a.store.Sessions(path) {
			running := false
			if live := a.terminalManager.Get(sess.ID); live != nil {
				running = live.IsRunning()
			}
			info.Sessions = append(info.Sessions, remote.SessionInfo{
				ID:          sess.ID,
				WorkspaceID: path,
				Name:        sess.Title,
				WorkDir:     path,
				Running:     running,
			})
		}
		result = append(result, info)
	}
	return result
}

// CreateRemoteSession creates a PTY session on behalf of a remote client
func (a *App) CreateRemoteSession(workspaceID, name string) (*remote.SessionInfo, error) {
	info, err := a.CreateSession(workspaceID, name, workspace.SessionTypeShell, true)
	if err != nil {
		return nil, err
	}
	return &remote.SessionInfo{
		ID:          info.ID,
		WorkspaceID: workspaceID,
		Name:        info.Title,
		WorkDir:     workspaceID,
		Running:     true,
	}, nil
}

// RenameRemoteSession renames a session on behalf of a remote client
func (a *App) RenameRemoteSession(workspaceID, sessionID, name string) error {
	if !a.RenameSession(workspaceID, sessionID, name) {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

// CloseRemoteSession closes a session on behalf of a remote client
func (a *App) CloseRemoteSession(workspaceID, sessionID string) error {
	if !a.CloseSession(workspaceID, sessionID) {
		return fmt.Errorf("cannot close session %s", sessionID)
	}
	return nil
}
