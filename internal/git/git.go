// Package git shells out to the local git binary. It backs the diff and
// history views and serves as the fallback source of truth when the agent
// backend is unreachable.
package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ChangedFile is one entry of the working-copy change list
type ChangedFile struct {
	Path   string `json:"path"`
	Status string `json:"status"` // M = modified, A = added, D = deleted, ? = untracked
	Staged bool   `json:"staged"`
}

// FileDiff carries both sides of a file plus the unified diff text
type FileDiff struct {
	Path        string `json:"path"`
	OldContent  string `json:"oldContent"`
	NewContent  string `json:"newContent"`
	DiffContent string `json:"diffContent"`
}

// Status is the summary shown in the workspace header
type Status struct {
	Branch    string `json:"branch"`
	Staged    int    `json:"staged"`
	Unstaged  int    `json:"unstaged"`
	Untracked int    `json:"untracked"`
	Clean     bool   `json:"clean"`
}

// Manager handles git operations
type Manager struct{}

// NewManager creates a new git manager
func NewManager() *Manager {
	return &Manager{}
}

// IsRepo checks if the path is a git repository
func (m *Manager) IsRepo(path string) bool {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--git-dir")
	if cmd.Run() == nil {
		return true
	}
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

// CurrentBranch returns the current branch name, or "" outside a repo
func (m *Manager) CurrentBranch(path string) string {
	cmd := exec.Command("git", "-C", path, "branch", "--show-current")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// ChangedFiles returns the staged, unstaged, and untracked files
func (m *Manager) ChangedFiles(path string) ([]ChangedFile, error) {
	var files []ChangedFile

	stagedCmd := exec.Command("git", "-C", path, "diff", "--cached", "--name-status")
	stagedOutput, _ := stagedCmd.Output()
	for _, line := range strings.Split(string(stagedOutput), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			files = append(files, ChangedFile{
				Path:   parts[1],
				Status: parts[0],
				Staged: true,
			})
		}
	}

	unstagedCmd := exec.Command("git", "-C", path, "diff", "--name-status")
	unstagedOutput, _ := unstagedCmd.Output()
	for _, line := range strings.Split(string(unstagedOutput), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			// A file can be both staged and unstaged; keep the staged entry
			found := false
			for _, f := range files {
				if f.Path == parts[1] {
					found = true
					break
				}
			}
			if !found {
				files = append(files, ChangedFile{
					Path:   parts[1],
					Status: parts[0],
					Staged: false,
				})
			}
		}
	}

	untrackedCmd := exec.Command("git", "-C", path, "ls-files", "--others", "--exclude-standard")
	untrackedOutput, _ := untrackedCmd.Output()
	for _, line := range strings.Split(string(untrackedOutput), "\n") {
		if line == "" {
			continue
		}
		files = append(files, ChangedFile{
			Path:   line,
			Status: "?",
			Staged: false,
		})
	}

	return files, nil
}

// GetStatus summarizes working-copy state for a path
func (m *Manager) GetStatus(path string) Status {
	st := Status{Branch: m.CurrentBranch(path)}

	files, err := m.ChangedFiles(path)
	if err != nil {
		st.Clean = true
		return st
	}

	for _, f := range files {
		switch {
		case f.Staged:
			st.Staged++
		case f.Status == "?":
			st.Untracked++
		default:
			st.Unstaged++
		}
	}
	st.Clean = st.Staged == 0 && st.Unstaged == 0 && st.Untracked == 0
	return st
}

// IsClean reports whether the working copy has no local changes. Used to
// refuse workspace deletion without force.
func (m *Manager) IsClean(path string) bool {
	return m.GetStatus(path).Clean
}

// GetFileDiff returns the diff for a specific file
func (m *Manager) GetFileDiff(repoPath, filePath string) (*FileDiff, error) {
	diff := &FileDiff{Path: filePath}

	diffCmd := exec.Command("git", "-C", repoPath, "diff", "--", filePath)
	diffOutput, _ := diffCmd.Output()

	// Fall back to the staged diff when nothing is unstaged
	if len(diffOutput) == 0 {
		diffCmd = exec.Command("git", "-C", repoPath, "diff", "--cached", "--", filePath)
		diffOutput, _ = diffCmd.Output()
	}
	diff.DiffContent = string(diffOutput)

	oldCmd := exec.Command("git", "-C", repoPath, "show", "HEAD:"+filePath)
	oldOutput, _ := oldCmd.Output()
	diff.OldContent = string(oldOutput)

	newOutput, err := os.ReadFile(filepath.Join(repoPath, filePath))
	if err == nil {
		diff.NewContent = string(newOutput)
	}

	return diff, nil
}

// CommitInfo represents detailed information about a commit
type CommitInfo struct {
	Hash         string       `json:"hash"`
	ShortHash    string       `json:"shortHash"`
	Subject      string       `json:"subject"`
	Body         string       `json:"body"`
	Author       string       `json:"author"`
	AuthorEmail  string       `json:"authorEmail"`
	Date         string       `json:"date"`         // ISO format
	RelativeDate string       `json:"relativeDate"` // "2 hours ago"
	Files        []CommitFile `json:"files"`
	Stats        CommitStats  `json:"stats"`
}

// CommitFile represents a file changed in a commit
type CommitFile struct {
	Path   string `json:"path"`
	Status string `json:"status"` // A, M, D, R
}

// CommitStats represents statistics for a commit
type CommitStats struct {
	FilesChanged int `json:"filesChanged"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
}

// CommitHistory returns up to limit recent commits for a repository
func (m *Manager) CommitHistory(repoPath string, limit int) ([]CommitInfo, error) {
	if limit <= 0 {
		limit = 50
	}

	// ASCII 0x1E (record separator) keeps subjects with pipes intact
	format := "%H%x1E%h%x1E%s%x1E%an%x1E%ae%x1E%aI%x1E%ar%x1E%b%x00"

	cmd := exec.Command("git", "-C", repoPath, "log",
		"--format="+format,
		"-n", fmt.Sprintf("%d", limit),
		"--no-merges")

	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	commits := []CommitInfo{}
	for _, entry := range strings.Split(string(output), "\x00") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, "\x1E")
		if len(parts) < 7 {
			continue
		}

		commit := CommitInfo{
			Hash:         parts[0],
			ShortHash:    parts[1],
			Subject:      parts[2],
			Author:       parts[3],
			AuthorEmail:  parts[4],
			Date:         parts[5],
			RelativeDate: parts[6],
		}
		if len(parts) > 7 {
			commit.Body = strings.TrimSpace(parts[7])
		}

		commit.Files, commit.Stats = m.commitDetails(repoPath, commit.Hash)
		commits = append(commits, commit)
	}

	return commits, nil
}

// commitDetails returns files and stats for a specific commit
func (m *Manager) commitDetails(repoPath, hash string) ([]CommitFile, CommitStats) {
	files := []CommitFile{}
	stats := CommitStats{}

	cmd := exec.Command("git", "-C", repoPath, "show", "--name-status", "--format=", hash)
	output, err := cmd.Output()
	if err != nil {
		return files, stats
	}

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			files = append(files, CommitFile{
				Status: parts[0],
				Path:   parts[1],
			})
		}
	}
	stats.FilesChanged = len(files)

	cmd = exec.Command("git", "-C", repoPath, "show", "--numstat", "--format=", hash)
	output, err = cmd.Output()
	if err != nil {
		return files, stats
	}

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			if parts[0] != "-" {
				var ins int
				fmt.Sscanf(parts[0], "%d", &ins)
				stats.Insertions += ins
			}
			if parts[1] != "-" {
				var del int
				fmt.Sscanf(parts[1], "%d", &del)
				stats.Deletions += del
			}
		}
	}

	return files, stats
}
