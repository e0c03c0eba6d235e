package checkout

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Manager materializes and releases workspace directories using git
// worktrees. Git is an external collaborator: the manager shells out and
// surfaces its output on failure, nothing more.
type Manager struct {
	rootDir string
}

// NewManager creates a Manager that places workspace directories under rootDir
func NewManager(rootDir string) *Manager {
	return &Manager{rootDir: rootDir}
}

// Create creates a worktree for branch off baseRepo and returns its path.
// The directory name embeds a short id suffix so repeated branches over the
// lifetime of the registry never collide on disk.
func (m *Manager) Create(baseRepo, branch, id string) (string, error) {
	if err := os.MkdirAll(m.rootDir, 0755); err != nil {
		return "", fmt.Errorf("creating workspace root: %w", err)
	}

	path := filepath.Join(m.rootDir, DirName(branch, id))

	// Fetch latest from origin first (if remote exists)
	fetchCmd := exec.Command("git", "fetch", "origin", "main")
	fetchCmd.Dir = baseRepo
	fetchCmd.Run() // Ignore error - remote might not exist

	// Base the worktree on origin/main when available, else HEAD
	baseRef := "origin/main"
	checkCmd := exec.Command("git", "rev-parse", "--verify", "origin/main")
	checkCmd.Dir = baseRepo
	if checkCmd.Run() != nil {
		baseRef = "HEAD"
	}

	cmd := exec.Command("git", "worktree", "add", "-b", branch, path, baseRef)
	cmd.Dir = baseRepo
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git worktree add: %s: %w", out, err)
	}

	return path, nil
}

// Remove releases a workspace directory and deletes its branch
func (m *Manager) Remove(baseRepo, path string) error {
	// Get branch name before removing
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = path
	branchOut, _ := cmd.Output()
	branch := strings.TrimSpace(string(branchOut))

	cmd = exec.Command("git", "worktree", "remove", "--force", path)
	cmd.Dir = baseRepo
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git worktree remove: %s: %w", out, err)
	}

	if branch != "" && branch != "HEAD" {
		cmd = exec.Command("git", "branch", "-D", branch)
		cmd.Dir = baseRepo
		cmd.Run() // Ignore error if branch doesn't exist
	}

	return nil
}

// List returns all worktree paths of baseRepo that live under the manager's
// workspace root
func (m *Manager) List(baseRepo string) ([]string, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = baseRepo
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			path := strings.TrimPrefix(line, "worktree ")
			if strings.HasPrefix(path, m.rootDir) {
				paths = append(paths, path)
			}
		}
	}

	return paths, nil
}

// DirName returns the directory name for a workspace: the branch with path
// separators flattened, plus a short id suffix.
func DirName(branch, id string) string {
	safe := strings.ReplaceAll(branch, "/", "-")
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s-%s", safe, suffix)
}
