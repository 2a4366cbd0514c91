package rpc

import "encoding/json"

// Backend method names. These are backend-contract-defined and must match
// the agent daemon byte-for-byte.
const (
	MethodSessionCreate = "session.create"
	MethodSessionWrite  = "session.write"
	MethodSessionResize = "session.resize"
	MethodSessionClose  = "session.close"

	MethodExecuteCommand      = "execute_command"
	MethodExecuteCommandAsync = "execute_command_async"
	MethodKillCommand         = "kill_command"

	MethodListDirectory = "list_directory"
	MethodSearchFiles   = "search_files"

	MethodGitStatus = "git_status"
	MethodGitBranch = "git_branch"

	MethodWorkspaceList   = "workspace.list"
	MethodWorkspaceCreate = "workspace.create"
	MethodWorkspaceDelete = "workspace.delete"
)

// Backend event stream names
const (
	EventTerminalOutput    = "terminal-output"
	EventClaudeOutput      = "claude-output"
	EventClaudeError       = "claude-error"
	EventClaudeComplete    = "claude-complete"
	EventSSHSyncProgress   = "ssh-sync-progress"
	EventAutoSyncStarted   = "auto-sync-started"
	EventAutoSyncCompleted = "auto-sync-completed"
	EventAutoSyncFailed    = "auto-sync-failed"
	EventGitChanged        = "git-changed"
)

// request is one outbound call frame
type request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// frame is one inbound message: either a call response (ID set) or a
// broadcast event (Event set)
type frame struct {
	ID     string          `json:"id,omitempty"`
	Event  string          `json:"event,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// SessionCreateParams requests a backend PTY session
type SessionCreateParams struct {
	Cwd  string `json:"cwd"`
	Rows uint16 `json:"rows"`
	Cols uint16 `json:"cols"`
}

// SessionCreateResult carries the backend session id
type SessionCreateResult struct {
	SessionID string `json:"session_id"`
}

// SessionWriteParams sends input to a backend session
type SessionWriteParams struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"` // base64
}

// SessionResizeParams resizes a backend session
type SessionResizeParams struct {
	SessionID string `json:"session_id"`
	Rows      uint16 `json:"rows"`
	Cols      uint16 `json:"cols"`
}

// SessionCloseParams closes a backend session
type SessionCloseParams struct {
	SessionID string `json:"session_id"`
}

// ExecuteParams runs a command, sync or async-streamed. For async runs the
// caller supplies the command id; the mapping to the issuing session is
// recorded client-side before this call is dispatched.
type ExecuteParams struct {
	Command   string `json:"command"`
	Cwd       string `json:"cwd"`
	CommandID string `json:"command_id,omitempty"`
}

// ExecuteResult is the synchronous command result
type ExecuteResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// KillParams cancels a running async command. Advisory: the process is not
// guaranteed dead until an exit event or liveness check confirms it.
type KillParams struct {
	CommandID string `json:"command_id"`
}

// ListDirectoryParams lists one directory level
type ListDirectoryParams struct {
	Path string `json:"path"`
}

// DirEntry is one directory listing row
type DirEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// ListDirectoryResult is the directory listing
type ListDirectoryResult struct {
	Entries []DirEntry `json:"entries"`
}

// SearchFilesParams searches file names/content under a root
type SearchFilesParams struct {
	Root    string `json:"root"`
	Query   string `json:"query"`
	MaxHits int    `json:"max_hits,omitempty"`
}

// SearchHit is one search result row
type SearchHit struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
	Text string `json:"text,omitempty"`
}

// SearchFilesResult is the search response
type SearchFilesResult struct {
	Hits []SearchHit `json:"hits"`
}

// GitStatusParams queries status for a working copy
type GitStatusParams struct {
	Path string `json:"path"`
}

// GitStatusResult summarizes working-copy state
type GitStatusResult struct {
	Branch    string `json:"branch"`
	Staged    int    `json:"staged"`
	Unstaged  int    `json:"unstaged"`
	Untracked int    `json:"untracked"`
	Clean     bool   `json:"clean"`
}

// WorkspaceInfo is one backend workspace record
type WorkspaceInfo struct {
	ID          string `json:"id"`
	ProjectPath string `json:"project_path"`
	Branch      string `json:"branch"`
	Path        string `json:"path"`
}

// WorkspaceListResult lists backend workspaces
type WorkspaceListResult struct {
	Workspaces []WorkspaceInfo `json:"workspaces"`
}

// WorkspaceCreateParams creates a branch-scoped workspace
type WorkspaceCreateParams struct {
	ProjectPath string `json:"project_path"`
	Branch      string `json:"branch"`
}

// WorkspaceDeleteParams removes a workspace
type WorkspaceDeleteParams struct {
	ID    string `json:"id"`
	Force bool   `json:"force,omitempty"`
}

// CommandOutputEvent is the payload of terminal-output/claude-* events
type CommandOutputEvent struct {
	CommandID  string `json:"command_id"`
	SessionID  string `json:"session_id,omitempty"`
	Cwd        string `json:"cwd,omitempty"`
	OutputType string `json:"output_type"`
	Content    string `json:"content,omitempty"`
	ExitCode   int    `json:"exit_code,omitempty"`
}

// SyncProgressEvent is the payload of ssh-sync-progress and auto-sync-*
type SyncProgressEvent struct {
	Cwd     string  `json:"cwd"`
	Phase   string  `json:"phase,omitempty"`
	Percent float64 `json:"percent,omitempty"`
	Message string  `json:"message,omitempty"`
}

// GitChangedEvent is the payload of git-changed
type GitChangedEvent struct {
	Cwd string `json:"cwd"`
}
