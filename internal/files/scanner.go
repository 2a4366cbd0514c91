// Package files scans workspace trees for the file picker and structure
// view. Each scan refreshes a cached flat index so search keeps answering
// from the last good snapshot when the tree is temporarily unreadable or
// the backend listing is down.
package files

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"codedeck/internal/logging"
)

// Node represents a file or directory in the workspace tree
type Node struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	IsDir     bool   `json:"isDir"`
	Children  []Node `json:"children,omitempty"`
	FileCount int    `json:"fileCount,omitempty"` // directories only
}

// Hit is one file-picker search result
type Hit struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// DefaultMaxHits bounds picker result lists
const DefaultMaxHits = 50

// Scanner walks workspace directories, skipping build output and VCS
// internals, and keeps a per-root index of seen file paths.
type Scanner struct {
	ignoredDirs map[string]bool

	mu      sync.RWMutex
	indexes map[string]*index // keyed by workspace root
}

type index struct {
	paths     []string
	scannedAt time.Time
}

// NewScanner creates a scanner with the default ignore list
func NewScanner() *Scanner {
	return &Scanner{
		ignoredDirs: map[string]bool{
			"node_modules": true,
			".git":         true,
			"dist":         true,
			"build":        true,
			".next":        true,
			".nuxt":        true,
			"coverage":     true,
			".cache":       true,
			".turbo":       true,
			"out":          true,
			".output":      true,
			"vendor":       true,
			".vscode":      true,
			".idea":        true,
			"target":       true,
		},
		indexes: make(map[string]*index),
	}
}

// Scan walks the workspace root and returns its file tree, refreshing the
// cached index as a side effect.
func (s *Scanner) Scan(root string) (*Node, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrNotExist
	}

	var paths []string
	tree := s.scanDir(root, filepath.Base(root), &paths)

	s.mu.Lock()
	s.indexes[root] = &index{paths: paths, scannedAt: time.Now()}
	s.mu.Unlock()

	return tree, nil
}

func (s *Scanner) scanDir(dirPath, name string, paths *[]string) *Node {
	node := &Node{
		Name:     name,
		Path:     dirPath,
		IsDir:    true,
		Children: []Node{},
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		logging.Debug("Skipping unreadable directory", "path", logging.MaskPath(dirPath), "error", err)
		return node
	}

	var dirs []os.DirEntry
	var files []os.DirEntry
	for _, entry := range entries {
		entryName := entry.Name()
		if strings.HasPrefix(entryName, ".") {
			continue
		}
		if entry.IsDir() {
			if s.ignoredDirs[entryName] {
				continue
			}
			dirs = append(dirs, entry)
		} else {
			files = append(files, entry)
		}
	}

	sort.Slice(dirs, func(i, j int) bool {
		return strings.ToLower(dirs[i].Name()) < strings.ToLower(dirs[j].Name())
	})
	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i].Name()) < strings.ToLower(files[j].Name())
	})

	for _, dir := range dirs {
		childPath := filepath.Join(dirPath, dir.Name())
		child := s.scanDir(childPath, dir.Name(), paths)
		if child.FileCount > 0 || len(child.Children) > 0 {
			node.Children = append(node.Children, *child)
			node.FileCount += child.FileCount
		}
	}

	for _, file := range files {
		filePath := filepath.Join(dirPath, file.Name())
		node.Children = append(node.Children, Node{
			Name:  file.Name(),
			Path:  filePath,
			IsDir: false,
		})
		node.FileCount++
		*paths = append(*paths, filePath)
	}

	return node
}

// FolderHierarchy returns only the directory skeleton of the tree
func (s *Scanner) FolderHierarchy(root string) (*Node, error) {
	tree, err := s.Scan(root)
	if err != nil {
		return nil, err
	}
	return filterDirsOnly(tree), nil
}

func filterDirsOnly(node *Node) *Node {
	if node == nil {
		return nil
	}
	result := &Node{
		Name:      node.Name,
		Path:      node.Path,
		IsDir:     true,
		FileCount: node.FileCount,
		Children:  []Node{},
	}
	for _, child := range node.Children {
		if child.IsDir {
			result.Children = append(result.Children, *filterDirsOnly(&child))
		}
	}
	return result
}

// Search matches query against the cached index for root. If the root was
// never scanned (or the cache is empty) a scan is attempted first; if that
// fails the stale cache is still consulted rather than erroring out.
func (s *Scanner) Search(root, query string, maxHits int) []Hit {
	if maxHits <= 0 {
		maxHits = DefaultMaxHits
	}

	s.mu.RLock()
	idx, ok := s.indexes[root]
	s.mu.RUnlock()

	if !ok {
		if _, err := s.Scan(root); err != nil {
			logging.Warn("Scan failed, search has no index", "root", logging.MaskPath(root), "error", err)
			return nil
		}
		s.mu.RLock()
		idx = s.indexes[root]
		s.mu.RUnlock()
	}

	query = strings.ToLower(query)
	var nameHits, pathHits []Hit
	for _, p := range idx.paths {
		name := filepath.Base(p)
		switch {
		case query == "":
			nameHits = append(nameHits, Hit{Path: p, Name: name})
		case strings.Contains(strings.ToLower(name), query):
			nameHits = append(nameHits, Hit{Path: p, Name: name})
		case strings.Contains(strings.ToLower(p), query):
			pathHits = append(pathHits, Hit{Path: p, Name: name})
		}
		if len(nameHits) >= maxHits {
			break
		}
	}

	hits := append(nameHits, pathHits...)
	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	return hits
}

// IndexAge returns how long ago root was scanned, or false if never
func (s *Scanner) IndexAge(root string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[root]
	if !ok {
		return 0, false
	}
	return time.Since(idx.scannedAt), true
}

// Invalidate drops the cached index for a root
func (s *Scanner) Invalidate(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, root)
}
