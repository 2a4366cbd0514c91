package main

import (
	"path/filepath"
	"testing"

	"codedeck/internal/router"
	"codedeck/internal/rpc"
	"codedeck/internal/workspace"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	store, err := workspace.NewStoreAt(filepath.Join(t.TempDir(), "workspaces.json"))
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}

	a := NewApp()
	a.store = store
	a.cmdRouter = router.New(store, router.Options{})
	a.backend = rpc.NewClient("ws://127.0.0.1:1/never")
	return a
}

func TestReconcileSkipsWhileBackendDisconnected(t *testing.T) {
	a := newTestApp(t)

	sess := a.store.CurrentState("/tmp/proj").Sessions[0]
	a.cmdRouter.Begin(sess.ID)
	if !a.store.IsRunning(sess.ID) {
		t.Fatal("session should be running after Begin")
	}

	// No link, no observation: the pass must not force-idle anything
	a.reconcile()

	if !a.store.IsRunning(sess.ID) {
		t.Error("reconcile cleared a running flag with the backend disconnected")
	}
	if _, ok := a.cmdRouter.CommandFor(sess.ID); !ok {
		t.Error("reconcile dropped the command mapping with the backend disconnected")
	}
}
