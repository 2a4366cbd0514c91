package files

import (
	"os"
	"path/filepath"
	"testing"
)

func seedTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	mk := func(rel, content string) {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	mk("main.go", "package main")
	mk("internal/server/server.go", "package server")
	mk("internal/server/handler.go", "package server")
	mk("node_modules/lib/index.js", "ignored")
	mk(".git/config", "ignored")
	mk(".env", "ignored hidden file")
	return root
}

func TestScanSkipsIgnoredAndHidden(t *testing.T) {
	s := NewScanner()
	root := seedTree(t)

	tree, err := s.Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	if tree.FileCount != 3 {
		t.Errorf("file count = %d, want 3", tree.FileCount)
	}
	for _, child := range tree.Children {
		if child.Name == "node_modules" || child.Name == ".git" || child.Name == ".env" {
			t.Errorf("ignored entry %q present in tree", child.Name)
		}
	}
}

func TestScanRejectsFiles(t *testing.T) {
	s := NewScanner()
	root := seedTree(t)

	if _, err := s.Scan(filepath.Join(root, "main.go")); err == nil {
		t.Error("scanning a plain file must fail")
	}
}

func TestSearchRanksNameMatchesFirst(t *testing.T) {
	s := NewScanner()
	root := seedTree(t)

	hits := s.Search(root, "server", 10)
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	for _, h := range hits {
		if h.Name != "server.go" && h.Name != "handler.go" {
			t.Errorf("unexpected hit %+v", h)
		}
	}

	// "internal" only appears in paths, not basenames
	hits = s.Search(root, "internal", 10)
	if len(hits) != 2 {
		t.Errorf("path-substring hits = %d, want 2", len(hits))
	}
}

func TestSearchScansLazily(t *testing.T) {
	s := NewScanner()
	root := seedTree(t)

	// No explicit Scan call first
	hits := s.Search(root, "main", 10)
	if len(hits) != 1 || hits[0].Name != "main.go" {
		t.Errorf("hits = %+v", hits)
	}
	if _, ok := s.IndexAge(root); !ok {
		t.Error("lazy search must populate the index")
	}
}

func TestSearchHonorsMaxHits(t *testing.T) {
	s := NewScanner()
	root := seedTree(t)

	hits := s.Search(root, "", 2)
	if len(hits) != 2 {
		t.Errorf("hits = %d, want 2", len(hits))
	}
}

func TestInvalidate(t *testing.T) {
	s := NewScanner()
	root := seedTree(t)

	s.Search(root, "main", 10)
	s.Invalidate(root)
	if _, ok := s.IndexAge(root); ok {
		t.Error("index must be gone after Invalidate")
	}
}

func TestFolderHierarchyHasNoFiles(t *testing.T) {
	s := NewScanner()
	root := seedTree(t)

	tree, err := s.FolderHierarchy(root)
	if err != nil {
		t.Fatal(err)
	}
	var walk func(n *Node)
	walk = func(n *Node) {
		if !n.IsDir {
			t.Errorf("file %q in folder hierarchy", n.Path)
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(tree)
}
