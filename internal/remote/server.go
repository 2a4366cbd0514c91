// Package remote exposes local terminal sessions to companion clients over
// WebSocket. Access is token-gated: short-lived tokens are shown in the UI,
// approved clients hold permanent ones. The server is plain HTTP; a tunnel
// in front provides TLS.
package remote

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"codedeck/internal/logging"
	"codedeck/internal/terminal"

	"github.com/gorilla/websocket"
)

// MessageType discriminates WebSocket protocol frames
type MessageType string

const (
	MsgTypeInput         MessageType = "input"
	MsgTypeResize        MessageType = "resize"
	MsgTypeList          MessageType = "list"
	MsgTypeOutput        MessageType = "output"
	MsgTypeWorkspaces    MessageType = "workspaces"
	MsgTypeError         MessageType = "error"
	MsgTypePing          MessageType = "ping"
	MsgTypePong          MessageType = "pong"
	MsgTypeCreateSession MessageType = "createSession"
	MsgTypeRenameSession MessageType = "renameSession"
	MsgTypeCloseSession  MessageType = "closeSession"
)

const (
	maxClients      = 10
	maxAuthAttempts = 50
	authLockoutTime = 1 * time.Minute
	minResizeRows   = 1
	maxResizeRows   = 500
	minResizeCols   = 1
	maxResizeCols   = 500
	shutdownTimeout = 5 * time.Second
)

// ClientMessage is one frame from a remote client
type ClientMessage struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"sessionId,omitempty"`
	WorkspaceID string      `json:"workspaceId,omitempty"`
	Data        string      `json:"data,omitempty"` // base64 for input
	Name        string      `json:"name,omitempty"` // create/rename session
	Rows        int         `json:"rows,omitempty"`
	Cols        int         `json:"cols,omitempty"`
}

// ServerMessage is one frame to a remote client
type ServerMessage struct {
	Type       MessageType     `json:"type"`
	SessionID  string          `json:"sessionId,omitempty"`
	Data       string          `json:"data,omitempty"` // base64 for output
	Workspaces []WorkspaceInfo `json:"workspaces,omitempty"`
	Session    *SessionInfo    `json:"session,omitempty"`
	Message    string          `json:"message,omitempty"`
	Success    bool            `json:"success,omitempty"`
}

// SessionInfo is a session row as shown to remote clients
type SessionInfo struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
	WorkDir     string `json:"workDir"`
	Running     bool   `json:"running"`
}

// WorkspaceInfo is a workspace row with its sessions
type WorkspaceInfo struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Sessions []SessionInfo `json:"sessions"`
}

// ClientInfo describes one connected remote client
type ClientInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connectedAt"`
	SessionID   string    `json:"sessionId"`
	UserAgent   string    `json:"userAgent"`
	RemoteAddr  string    `json:"remoteAddr"`
	writeMu     sync.Mutex
}

type authAttempt struct {
	count    int
	lastTime time.Time
}

// ApprovedClient is a device holding a permanent token
type ApprovedClient struct {
	Token     string    `json:"token"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	LastUsed  time.Time `json:"lastUsed"`
}

// WorkspaceHandler is implemented by the app layer so session lifecycle
// changes made remotely flow through the same path the UI uses
type WorkspaceHandler interface {
	RemoteWorkspaces() []WorkspaceInfo
	CreateRemoteSession(workspaceID, name string) (*SessionInfo, error)
	RenameRemoteSession(workspaceID, sessionID, name string) error
	CloseRemoteSession(workspaceID, sessionID string) error
}

// Server handles remote session access via WebSocket
type Server struct {
	termManager     *terminal.Manager
	handler         WorkspaceHandler
	token           string
	tokenExpiry     time.Time
	approvedClients map[string]*ApprovedClient
	clients         map[*websocket.Conn]*ClientInfo
	authAttempts    map[string]*authAttempt
	mu              sync.RWMutex
	authMu          sync.RWMutex
	port            int
	server          *http.Server
	upgrader        websocket.Upgrader
	running         bool

	onApprovedChange func()
}

// NewServer creates a remote access server over the local session manager
func NewServer(tm *terminal.Manager) *Server {
	s := &Server{
		termManager:     tm,
		clients:         make(map[*websocket.Conn]*ClientInfo),
		authAttempts:    make(map[string]*authAttempt),
		approvedClients: make(map[string]*ApprovedClient),
		port:            9090,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// SetApprovedChangeCallback registers a callback run when the approved
// client set changes, so the app can persist it
func (s *Server) SetApprovedChangeCallback(cb func()) {
	s.mu.Lock()
	s.onApprovedChange = cb
	s.mu.Unlock()
}

// SetWorkspaceHandler wires the app-layer session operations
func (s *Server) SetWorkspaceHandler(handler WorkspaceHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// AddApprovedClient mints a permanent token for a named device
func (s *Server) AddApprovedClient(name string) (*ApprovedClient, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	token := hex.EncodeToString(bytes)
	client := &ApprovedClient{
		Token:     token,
		Name:      name,
		CreatedAt: time.Now(),
		LastUsed:  time.Now(),
	}

	s.mu.Lock()
	s.approvedClients[token] = client
	cb := s.onApprovedChange
	s.mu.Unlock()

	logging.Info("Approved client added", "name", name)
	if cb != nil {
		cb()
	}
	return client, nil
}

// RemoveApprovedClient revokes a permanent token
func (s *Server) RemoveApprovedClient(token string) {
	s.mu.Lock()
	delete(s.approvedClients, token)
	cb := s.onApprovedChange
	s.mu.Unlock()

	logging.Info("Approved client removed")
	if cb != nil {
		cb()
	}
}

// GetApprovedClients returns all approved clients
func (s *Server) GetApprovedClients() []*ApprovedClient {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*ApprovedClient, 0, len(s.approvedClients))
	for _, c := range s.approvedClients {
		clients = append(clients, c)
	}
	return clients
}

// SetApprovedClients loads approved clients from persistence
func (s *Server) SetApprovedClients(clients []*ApprovedClient) {
	s.mu.Lock()
	s.approvedClients = make(map[string]*ApprovedClient)
	for _, c := range clients {
		s.approvedClients[c.Token] = c
	}
	s.mu.Unlock()
}

// IsApprovedToken checks if a token is a permanent approved token
func (s *Server) IsApprovedToken(token string) bool {
	s.mu.RLock()
	_, exists := s.approvedClients[token]
	s.mu.RUnlock()
	return exists
}

func (s *Server) touchApprovedClient(token string) {
	s.mu.Lock()
	if client, exists := s.approvedClients[token]; exists {
		client.LastUsed = time.Now()
	}
	s.mu.Unlock()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1") ||
		strings.HasPrefix(origin, "https://localhost") ||
		strings.HasPrefix(origin, "https://127.0.0.1") {
		return true
	}

	// Tunnel domains
	if strings.HasSuffix(origin, ".ngrok.io") ||
		strings.HasSuffix(origin, ".ngrok-free.app") ||
		strings.HasSuffix(origin, ".ngrok.app") {
		return true
	}

	logging.Warn("WebSocket connection rejected: invalid origin", "origin", origin)
	return false
}

// GenerateToken mints a short-lived access token
func (s *Server) GenerateToken(duration time.Duration) (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		logging.Error("Failed to generate secure token", "error", err)
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}

	s.mu.Lock()
	s.token = hex.EncodeToString(bytes)
	s.tokenExpiry = time.Now().Add(duration)
	s.mu.Unlock()

	logging.Info("Remote access token generated", "expiry", s.tokenExpiry)
	return s.token, nil
}

// GetToken returns the current short-lived token for display in the UI
func (s *Server) GetToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// validateToken uses constant-time comparison against both permanent and
// short-lived tokens
func (s *Server) validateToken(token string) bool {
	if len(token) == 0 {
		return false
	}

	s.mu.RLock()
	storedToken := s.token
	expiry := s.tokenExpiry

	for approvedToken := range s.approvedClients {
		if subtle.ConstantTimeCompare([]byte(token), []byte(approvedToken)) == 1 {
			s.mu.RUnlock()
			s.touchApprovedClient(token)
			return true
		}
	}
	s.mu.RUnlock()

	if len(storedToken) == 0 {
		return false
	}

	tokenMatch := subtle.ConstantTimeCompare([]byte(token), []byte(storedToken)) == 1
	notExpired := time.Now().Before(expiry)
	return tokenMatch && notExpired
}

func (s *Server) checkRateLimit(ip string) bool {
	s.authMu.RLock()
	attempt, exists := s.authAttempts[ip]
	s.authMu.RUnlock()

	if !exists {
		return true
	}

	if time.Since(attempt.lastTime) > authLockoutTime {
		s.authMu.Lock()
		delete(s.authAttempts, ip)
		s.authMu.Unlock()
		return true
	}

	return attempt.count < maxAuthAttempts
}

func (s *Server) recordFailedAuth(ip string) {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	if _, exists := s.authAttempts[ip]; !exists {
		s.authAttempts[ip] = &authAttempt{}
	}
	s.authAttempts[ip].count++
	s.authAttempts[ip].lastTime = time.Now()

	if s.authAttempts[ip].count >= maxAuthAttempts {
		logging.Warn("IP locked out due to failed auth attempts", "ip", ip)
	}
}

func (s *Server) resetAuthAttempts(ip string) {
	s.authMu.Lock()
	delete(s.authAttempts, ip)
	s.authMu.Unlock()
}

func getClientIP(r *http.Request) string {
	// X-Forwarded-For is set by the tunnel
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return strings.Split(r.RemoteAddr, ":")[0]
}

func bearerToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if strings.HasPrefix(token, "Bearer ") {
		return strings.TrimPrefix(token, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Start runs the server on port; blocks until Stop or a listen error
func (s *Server) Start(port int) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.port = port
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/session", s.handleSessionWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/sessions", s.handleSessionsList)
	mux.HandleFunc("/api/token-info", s.handleTokenInfo)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	logging.Info("Remote access server starting", "port", port)
	logging.Warn("Remote access server running without TLS - front it with a tunnel")

	return s.server.ListenAndServe()
}

// Stop shuts the server down, closing client connections first
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.token = ""

	clientsToClose := make([]*struct {
		conn *websocket.Conn
		info *ClientInfo
	}, 0, len(s.clients))
	for conn, info := range s.clients {
		clientsToClose = append(clientsToClose, &struct {
			conn *websocket.Conn
			info *ClientInfo
		}{conn, info})
	}
	s.clients = make(map[*websocket.Conn]*ClientInfo)
	s.mu.Unlock()

	for _, c := range clientsToClose {
		c.info.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
		c.info.writeMu.Unlock()
		c.conn.Close()
	}

	if s.server != nil {
		logging.Info("Remote access server stopping")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// GetClients returns the connected clients
func (s *Server) GetClients() []ClientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]ClientInfo, 0, len(s.clients))
	for _, info := range s.clients {
		clients = append(clients, ClientInfo{
			ID:          info.ID,
			ConnectedAt: info.ConnectedAt,
			SessionID:   info.SessionID,
			UserAgent:   info.UserAgent,
			RemoteAddr:  info.RemoteAddr,
		})
	}
	return clients
}

// BroadcastOutput sends session output to every client watching it. Clients
// with no session selected receive all output.
func (s *Server) BroadcastOutput(sessionID string, data string) {
	msg := ServerMessage{
		Type:      MsgTypeOutput,
		SessionID: sessionID,
		Data:      data, // already base64
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal broadcast message", "error", err)
		return
	}

	s.mu.RLock()
	clients := make([]*struct {
		conn *websocket.Conn
		info *ClientInfo
	}, 0)
	for conn, info := range s.clients {
		if info.SessionID == sessionID || info.SessionID == "" {
			clients = append(clients, &struct {
				conn *websocket.Conn
				info *ClientInfo
			}{conn, info})
		}
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.info.writeMu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, msgBytes)
		c.info.writeMu.Unlock()
		if err != nil {
			logging.Debug("Failed to write to client", "error", err)
		}
	}
}

// BroadcastWorkspacesList pushes the current workspace/session tree to all
// connected clients
func (s *Server) BroadcastWorkspacesList() {
	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	var workspaces []WorkspaceInfo
	if handler != nil {
		workspaces = handler.RemoteWorkspaces()
	} else {
		workspaces = []WorkspaceInfo{}
	}

	msg := ServerMessage{
		Type:       MsgTypeWorkspaces,
		Workspaces: workspaces,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal workspaces broadcast", "error", err)
		return
	}

	s.mu.RLock()
	clients := make([]*struct {
		conn *websocket.Conn
		info *ClientInfo
	}, 0, len(s.clients))
	for conn, info := range s.clients {
		clients = append(clients, &struct {
			conn *websocket.Conn
			info *ClientInfo
		}{conn, info})
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.info.writeMu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, msgBytes)
		c.info.writeMu.Unlock()
		if err != nil {
			logging.Debug("Failed to broadcast workspaces list", "error", err)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	}); err != nil {
		logging.Error("Failed to encode health response", "error", err)
	}
}

func (s *Server) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if !s.checkRateLimit(clientIP) {
		http.Error(w, "Too many attempts, try again later", http.StatusTooManyRequests)
		return
	}

	if !s.validateToken(bearerToken(r)) {
		s.recordFailedAuth(clientIP)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	s.resetAuthAttempts(clientIP)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.sessionsList()); err != nil {
		logging.Error("Failed to encode sessions list", "error", err)
	}
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if !s.checkRateLimit(clientIP) {
		http.Error(w, "Too many attempts", http.StatusTooManyRequests)
		return
	}

	token := bearerToken(r)
	if !s.validateToken(token) {
		s.recordFailedAuth(clientIP)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	s.resetAuthAttempts(clientIP)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"valid":    true,
		"approved": s.IsApprovedToken(token),
	})
}

func (s *Server) sessionsList() []SessionInfo {
	sessions := s.termManager.List()
	list := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		info := sess.Info()
		list[i] = SessionInfo{
			ID:          info.ID,
			WorkspaceID: info.WorkspaceID,
			Name:        info.Title,
			WorkDir:     info.WorkDir,
			Running:     info.Running,
		}
	}
	return list
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if !s.checkRateLimit(clientIP) {
		http.Error(w, "Too many attempts, try again later", http.StatusTooManyRequests)
		logging.Warn("Remote access rejected: rate limited", "ip", clientIP)
		return
	}

	if !s.validateToken(bearerToken(r)) {
		s.recordFailedAuth(clientIP)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		logging.Warn("Remote access rejected: invalid token", "remoteAddr", r.RemoteAddr)
		return
	}
	s.resetAuthAttempts(clientIP)

	s.mu.RLock()
	clientCount := len(s.clients)
	s.mu.RUnlock()
	if clientCount >= maxClients {
		http.Error(w, "Maximum connections reached", http.StatusServiceUnavailable)
		logging.Warn("Remote access rejected: max clients reached", "count", clientCount)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed", "error", err)
		return
	}

	clientIDBytes := make([]byte, 8)
	if _, err := rand.Read(clientIDBytes); err != nil {
		logging.Error("Failed to generate client ID", "error", err)
		conn.Close()
		return
	}
	clientID := hex.EncodeToString(clientIDBytes)

	clientInfo := &ClientInfo{
		ID:          clientID,
		ConnectedAt: time.Now(),
		SessionID:   r.URL.Query().Get("sessionId"),
		UserAgent:   r.UserAgent(),
		RemoteAddr:  r.RemoteAddr,
	}

	s.mu.Lock()
	s.clients[conn] = clientInfo
	s.mu.Unlock()

	logging.Info("Remote client connected", "clientId", clientID, "remoteAddr", r.RemoteAddr)

	s.sendWorkspacesList(conn, clientInfo)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
		logging.Info("Remote client disconnected", "clientId", clientID)
	}()

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("WebSocket read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			s.sendError(conn, clientInfo, "Invalid message format")
			continue
		}

		s.handleClientMessage(conn, clientInfo, &msg)
	}
}

func (s *Server) handleClientMessage(conn *websocket.Conn, client *ClientInfo, msg *ClientMessage) {
	switch msg.Type {
	case MsgTypeInput:
		if msg.SessionID == "" {
			s.sendError(conn, client, "Session ID required")
			return
		}
		s.mu.Lock()
		client.SessionID = msg.SessionID
		s.mu.Unlock()

		decoded, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			decoded = []byte(msg.Data)
		}
		if err := s.termManager.Write(msg.SessionID, decoded); err != nil {
			logging.Error("Failed to write to session", "sessionId", msg.SessionID, "error", err)
			s.sendError(conn, client, fmt.Sprintf("Failed to write to session: %v", err))
		}

	case MsgTypeResize:
		if msg.SessionID == "" {
			s.sendError(conn, client, "Session ID required")
			return
		}

		s.mu.Lock()
		previousSessionID := client.SessionID
		client.SessionID = msg.SessionID
		s.mu.Unlock()

		if msg.Rows < minResizeRows || msg.Rows > maxResizeRows ||
			msg.Cols < minResizeCols || msg.Cols > maxResizeCols {
			s.sendError(conn, client, fmt.Sprintf("Invalid terminal dimensions: rows must be %d-%d, cols must be %d-%d",
				minResizeRows, maxResizeRows, minResizeCols, maxResizeCols))
			return
		}

		if err := s.termManager.Resize(msg.SessionID, uint16(msg.Rows), uint16(msg.Cols)); err != nil {
			s.sendError(conn, client, fmt.Sprintf("Failed to resize session: %v", err))
		}

		// Ctrl+L forces a redraw when the client switches sessions
		if previousSessionID != msg.SessionID {
			s.termManager.Write(msg.SessionID, []byte{0x0c})
		}

	case MsgTypeList:
		s.sendWorkspacesList(conn, client)

	case MsgTypeCreateSession:
		s.handleCreateSession(conn, client, msg)

	case MsgTypeRenameSession:
		s.handleRenameSession(conn, client, msg)

	case MsgTypeCloseSession:
		s.handleCloseSession(conn, client, msg)

	case MsgTypePing:
		s.sendPong(conn, client)
	}
}

func (s *Server) sendWorkspacesList(conn *websocket.Conn, client *ClientInfo) {
	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	var workspaces []WorkspaceInfo
	if handler != nil {
		workspaces = handler.RemoteWorkspaces()
	} else {
		workspaces = []WorkspaceInfo{}
	}

	msg := ServerMessage{
		Type:       MsgTypeWorkspaces,
		Workspaces: workspaces,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal workspaces list", "error", err)
		return
	}
	client.writeMu.Lock()
	if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
		logging.Debug("Failed to send workspaces list", "error", err)
	}
	client.writeMu.Unlock()
}

func (s *Server) handleCreateSession(conn *websocket.Conn, client *ClientInfo, msg *ClientMessage) {
	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	if handler == nil {
		s.sendError(conn, client, "Workspace handler not configured")
		return
	}
	if msg.WorkspaceID == "" {
		s.sendError(conn, client, "Workspace ID required")
		return
	}

	sess, err := handler.CreateRemoteSession(msg.WorkspaceID, msg.Name)
	if err != nil {
		s.sendError(conn, client, fmt.Sprintf("Failed to create session: %v", err))
		return
	}

	response := ServerMessage{
		Type:    MsgTypeCreateSession,
		Success: true,
		Session: sess,
	}
	msgBytes, _ := json.Marshal(response)
	client.writeMu.Lock()
	conn.WriteMessage(websocket.TextMessage, msgBytes)
	client.writeMu.Unlock()

	s.BroadcastWorkspacesList()
}

func (s *Server) handleRenameSession(conn *websocket.Conn, client *ClientInfo, msg *ClientMessage) {
	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	if handler == nil {
		s.sendError(conn, client, "Workspace handler not configured")
		return
	}
	if msg.WorkspaceID == "" || msg.SessionID == "" {
		s.sendError(conn, client, "Workspace ID and Session ID required")
		return
	}
	if msg.Name == "" {
		s.sendError(conn, client, "New name required")
		return
	}

	if err := handler.RenameRemoteSession(msg.WorkspaceID, msg.SessionID, msg.Name); err != nil {
		s.sendError(conn, client, fmt.Sprintf("Failed to rename session: %v", err))
		return
	}

	response := ServerMessage{
		Type:      MsgTypeRenameSession,
		Success:   true,
		SessionID: msg.SessionID,
	}
	msgBytes, _ := json.Marshal(response)
	client.writeMu.Lock()
	conn.WriteMessage(websocket.TextMessage, msgBytes)
	client.writeMu.Unlock()

	s.BroadcastWorkspacesList()
}

func (s *Server) handleCloseSession(conn *websocket.Conn, client *ClientInfo, msg *ClientMessage) {
	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	if handler == nil {
		s.sendError(conn, client, "Workspace handler not configured")
		return
	}
	if msg.WorkspaceID == "" || msg.SessionID == "" {
		s.sendError(conn, client, "Workspace ID and Session ID required")
		return
	}

	if err := handler.CloseRemoteSession(msg.WorkspaceID, msg.SessionID); err != nil {
		s.sendError(conn, client, fmt.Sprintf("Failed to close session: %v", err))
		return
	}

	response := ServerMessage{
		Type:      MsgTypeCloseSession,
		Success:   true,
		SessionID: msg.SessionID,
	}
	msgBytes, _ := json.Marshal(response)
	client.writeMu.Lock()
	conn.WriteMessage(websocket.TextMessage, msgBytes)
	client.writeMu.Unlock()

	s.BroadcastWorkspacesList()
}

func (s *Server) sendError(conn *websocket.Conn, client *ClientInfo, message string) {
	msg := ServerMessage{
		Type:    MsgTypeError,
		Message: message,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal error message", "error", err)
		return
	}
	client.writeMu.Lock()
	if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
		logging.Debug("Failed to send error", "error", err)
	}
	client.writeMu.Unlock()
}

func (s *Server) sendPong(conn *websocket.Conn, client *ClientInfo) {
	msg := ServerMessage{Type: MsgTypePong}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logging.Error("Failed to marshal pong message", "error", err)
		return
	}
	client.writeMu.Lock()
	if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
		logging.Debug("Failed to send pong", "error", err)
	}
	client.writeMu.Unlock()
}
