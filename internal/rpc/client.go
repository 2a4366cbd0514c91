// Package rpc is the WebSocket adapter to the external agent backend. Calls
// are correlated by request id; broadcast events are dispatched by name in
// backend-emission order on the single read loop.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"codedeck/internal/logging"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultCallTimeout bounds a call when the caller's context has none
	DefaultCallTimeout = 30 * time.Second

	reconnectMinDelay = time.Second
	reconnectMaxDelay = 30 * time.Second

	writeDeadline = 10 * time.Second
)

// EventHandler receives one broadcast event payload
type EventHandler func(data json.RawMessage)

// Client is a reconnecting WebSocket RPC client
type Client struct {
	url string

	mu        sync.Mutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	pending   map[string]chan frame
	handlers  map[string][]EventHandler
	connected bool

	onConnect func()

	stopOnce sync.Once
	stop     chan struct{}
}

// NewClient creates a client for the backend at url (ws:// or wss://)
func NewClient(url string) *Client {
	return &Client{
		url:      url,
		pending:  make(map[string]chan frame),
		handlers: make(map[string][]EventHandler),
		stop:     make(chan struct{}),
	}
}

// SetConnectHandler registers a callback run after every (re)connect.
// Used to trigger a reconciliation pass, since events may have been lost.
func (c *Client) SetConnectHandler(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// Subscribe registers a handler for a named backend event. Handlers for one
// event run in registration order, synchronously on the read loop, so
// per-command output events keep backend-emission order.
func (c *Client) Subscribe(event string, handler EventHandler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], handler)
	c.mu.Unlock()
}

// Start dials the backend and keeps the connection alive with backoff
// until Close. The first dial failure does not fail Start; the app works
// from cached data until the backend appears.
func (c *Client) Start() {
	go c.connectLoop()
}

func (c *Client) connectLoop() {
	delay := reconnectMinDelay
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			logging.Warn("Backend dial failed", "url", c.url, "retryIn", delay.String())
			select {
			case <-time.After(delay):
			case <-c.stop:
				return
			}
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		delay = reconnectMinDelay
		c.mu.Lock()
		c.conn = conn
		c.connected = true
		onConnect := c.onConnect
		c.mu.Unlock()

		logging.Info("Backend connected", "url", c.url)
		if onConnect != nil {
			onConnect()
		}

		c.readLoop(conn)

		c.mu.Lock()
		c.connected = false
		c.conn = nil
		c.failPending(fmt.Errorf("backend connection lost"))
		c.mu.Unlock()
	}
}

// failPending rejects all in-flight calls; must hold c.mu
func (c *Client) failPending(err error) {
	for id, ch := range c.pending {
		select {
		case ch <- frame{ID: id, Error: err.Error()}:
		default:
		}
		delete(c.pending, id)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Warn("Backend read failed", "error", err)
			}
			conn.Close()
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logging.Warn("Malformed backend frame dropped", "error", err)
			continue
		}

		switch {
		case f.ID != "":
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			if ok {
				delete(c.pending, f.ID)
			}
			c.mu.Unlock()
			if !ok {
				logging.Debug("Response for unknown call dropped", "id", f.ID)
				continue
			}
			ch <- f

		case f.Event != "":
			c.dispatch(f.Event, f.Data)

		default:
			logging.Warn("Backend frame without id or event dropped")
		}
	}
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	handlers := make([]EventHandler, len(c.handlers[event]))
	copy(handlers, c.handlers[event])
	c.mu.Unlock()

	if len(handlers) == 0 {
		logging.Debug("Unhandled backend event", "event", event)
		return
	}
	for _, h := range handlers {
		h(data)
	}
}

// IsConnected reports whether the backend link is up
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Call issues one request and decodes the result into out (which may be
// nil for calls without a result). Fails fast when disconnected so callers
// can fall back to cached data.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("%s: backend not connected", method)
	}
	id := uuid.New().String()
	ch := make(chan frame, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}

	req := request{ID: id, Method: method, Params: params}
	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, err)
	}

	select {
	case f := <-ch:
		if f.Error != "" {
			return fmt.Errorf("%s: %s", method, f.Error)
		}
		if out != nil && len(f.Result) > 0 {
			if err := json.Unmarshal(f.Result, out); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil

	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

// Close shuts the client down
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Typed wrappers over Call

// CreateSession asks the backend for a new PTY session
func (c *Client) CreateSession(ctx context.Context, cwd string, rows, cols uint16) (string, error) {
	var res SessionCreateResult
	err := c.Call(ctx, MethodSessionCreate, SessionCreateParams{Cwd: cwd, Rows: rows, Cols: cols}, &res)
	return res.SessionID, err
}

// WriteSession sends base64 input to a backend session
func (c *Client) WriteSession(ctx context.Context, sessionID, data string) error {
	return c.Call(ctx, MethodSessionWrite, SessionWriteParams{SessionID: sessionID, Data: data}, nil)
}

// ResizeSession resizes a backend session
func (c *Client) ResizeSession(ctx context.Context, sessionID string, rows, cols uint16) error {
	return c.Call(ctx, MethodSessionResize, SessionResizeParams{SessionID: sessionID, Rows: rows, Cols: cols}, nil)
}

// CloseSession closes a backend session
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	return c.Call(ctx, MethodSessionClose, SessionCloseParams{SessionID: sessionID}, nil)
}

// ExecuteCommand runs a command synchronously
func (c *Client) ExecuteCommand(ctx context.Context, command, cwd string) (*ExecuteResult, error) {
	var res ExecuteResult
	if err := c.Call(ctx, MethodExecuteCommand, ExecuteParams{Command: command, Cwd: cwd}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ExecuteCommandAsync starts a streamed command run. The caller must have
// registered commandID with the router before calling; output events may
// arrive as soon as the request is written.
func (c *Client) ExecuteCommandAsync(ctx context.Context, command, cwd, commandID string) error {
	return c.Call(ctx, MethodExecuteCommandAsync, ExecuteParams{Command: command, Cwd: cwd, CommandID: commandID}, nil)
}

// KillCommand requests cancellation of a running command
func (c *Client) KillCommand(ctx context.Context, commandID string) error {
	return c.Call(ctx, MethodKillCommand, KillParams{CommandID: commandID}, nil)
}

// ListDirectory lists one backend directory level
func (c *Client) ListDirectory(ctx context.Context, path string) ([]DirEntry, error) {
	var res ListDirectoryResult
	if err := c.Call(ctx, MethodListDirectory, ListDirectoryParams{Path: path}, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// SearchFiles searches under root via the backend index
func (c *Client) SearchFiles(ctx context.Context, root, query string, maxHits int) ([]SearchHit, error) {
	var res SearchFilesResult
	params := SearchFilesParams{Root: root, Query: query, MaxHits: maxHits}
	if err := c.Call(ctx, MethodSearchFiles, params, &res); err != nil {
		return nil, err
	}
	return res.Hits, nil
}

// GitStatus queries working-copy status via the backend
func (c *Client) GitStatus(ctx context.Context, path string) (*GitStatusResult, error) {
	var res GitStatusResult
	if err := c.Call(ctx, MethodGitStatus, GitStatusParams{Path: path}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GitBranch returns the current branch via the backend
func (c *Client) GitBranch(ctx context.Context, path string) (string, error) {
	var res struct {
		Branch string `json:"branch"`
	}
	if err := c.Call(ctx, MethodGitBranch, GitStatusParams{Path: path}, &res); err != nil {
		return "", err
	}
	return res.Branch, nil
}

// ListWorkspaces lists backend workspaces
func (c *Client) ListWorkspaces(ctx context.Context) ([]WorkspaceInfo, error) {
	var res WorkspaceListResult
	if err := c.Call(ctx, MethodWorkspaceList, nil, &res); err != nil {
		return nil, err
	}
	return res.Workspaces, nil
}

// CreateWorkspace creates a branch-scoped workspace
func (c *Client) CreateWorkspace(ctx context.Context, projectPath, branch string) (*WorkspaceInfo, error) {
	var res WorkspaceInfo
	params := WorkspaceCreateParams{ProjectPath: projectPath, Branch: branch}
	if err := c.Call(ctx, MethodWorkspaceCreate, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteWorkspace removes a workspace. The backend rejects deletion of a
// dirty working copy unless force is set; the error is surfaced to the user.
func (c *Client) DeleteWorkspace(ctx context.Context, id string, force bool) error {
	return c.Call(ctx, MethodWorkspaceDelete, WorkspaceDeleteParams{ID: id, Force: force}, nil)
}
