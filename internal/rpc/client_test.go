package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeBackend is a minimal in-process agent backend speaking the wire format
type fakeBackend struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu   sync.Mutex
	conn *websocket.Conn
}

func newFakeBackend(t *testing.T, handle func(b *fakeBackend, req request)) *fakeBackend {
	t.Helper()
	b := &fakeBackend{t: t}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()

		for {
			var req request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			handle(b, req)
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func (b *fakeBackend) send(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		if err := b.conn.WriteJSON(v); err != nil {
			b.t.Logf("backend write: %v", err)
		}
	}
}

func (b *fakeBackend) respond(id string, result any) {
	raw, _ := json.Marshal(result)
	b.send(map[string]any{"id": id, "result": json.RawMessage(raw)})
}

func (b *fakeBackend) emit(event string, data any) {
	raw, _ := json.Marshal(data)
	b.send(map[string]any{"event": event, "data": json.RawMessage(raw)})
}

func startClient(t *testing.T, b *fakeBackend) *Client {
	t.Helper()
	c := NewClient(b.url())
	c.Start()
	t.Cleanup(c.Close)

	deadline := time.Now().Add(5 * time.Second)
	for !c.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatal("client never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return c
}

func TestCallCorrelatesResponses(t *testing.T) {
	backend := newFakeBackend(t, func(b *fakeBackend, req request) {
		switch req.Method {
		case MethodGitBranch:
			b.respond(req.ID, map[string]string{"branch": "main"})
		case MethodSessionCreate:
			b.respond(req.ID, SessionCreateResult{SessionID: "bs-1"})
		default:
			b.send(map[string]any{"id": req.ID, "error": "unknown method"})
		}
	})
	c := startClient(t, backend)

	branch, err := c.GitBranch(context.Background(), "/tmp/proj")
	if err != nil {
		t.Fatalf("GitBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("branch = %q, want main", branch)
	}

	sessionID, err := c.CreateSession(context.Background(), "/tmp/proj", 24, 80)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sessionID != "bs-1" {
		t.Errorf("sessionID = %q, want bs-1", sessionID)
	}
}

func TestCallSurfacesBackendError(t *testing.T) {
	backend := newFakeBackend(t, func(b *fakeBackend, req request) {
		b.send(map[string]any{"id": req.ID, "error": "workspace not clean"})
	})
	c := startClient(t, backend)

	err := c.DeleteWorkspace(context.Background(), "ws-1", false)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "workspace not clean") {
		t.Errorf("error = %v", err)
	}
}

func TestCallFailsFastWhenDisconnected(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/never")
	defer c.Close()

	_, err := c.GitBranch(context.Background(), "/tmp/proj")
	if err == nil {
		t.Fatal("expected not-connected error")
	}
	if !strings.Contains(err.Error(), "not connected") {
		t.Errorf("error = %v", err)
	}
}

func TestEventsDispatchInOrder(t *testing.T) {
	backend := newFakeBackend(t, func(b *fakeBackend, req request) {
		b.respond(req.ID, nil)
	})
	c := startClient(t, backend)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	c.Subscribe(EventTerminalOutput, func(data json.RawMessage) {
		var ev CommandOutputEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Errorf("decode event: %v", err)
			return
		}
		mu.Lock()
		got = append(got, ev.Content)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	for _, content := range []string{"a", "b", "c"} {
		backend.emit(EventTerminalOutput, CommandOutputEvent{
			CommandID:  "cmd-1",
			OutputType: "stdout",
			Content:    content,
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("order = %v, want [a b c]", got)
	}
}

func TestCallTimesOutWithContext(t *testing.T) {
	backend := newFakeBackend(t, func(b *fakeBackend, req request) {
		// Never respond
	})
	c := startClient(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := c.KillCommand(ctx, "cmd-1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("call did not honor context deadline")
	}
}
