// Package paths resolves durable on-disk locations for the metadata and
// vector stores, scoped either globally (one shared index across all
// workspaces) or per-workspace. Every function here is a pure function of
// its scope argument; nothing touches the filesystem except
// EnsureDirectories.
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	metadataFileName = "metadata.sqlite3"
	vectorDirName    = "vectors"
	lockFileName     = ".docrag.lock"
)

// Root returns the durable root directory under which all docrag state
// lives: ~/.docrag, falling back to a temp directory if the home
// directory cannot be resolved.
func Root() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docrag")
	}
	return filepath.Join(home, ".docrag")
}

// GlobalVectorDir returns the vector store directory shared across all
// workspaces.
func GlobalVectorDir() string {
	return filepath.Join(Root(), "global", vectorDirName)
}

// GlobalMetadataPath returns the metadata store path shared across all
// workspaces.
func GlobalMetadataPath() string {
	return filepath.Join(Root(), "global", metadataFileName)
}

// WorkspaceVectorDir returns the vector store directory scoped to a
// single workspace, keyed by a hash of its identity so that two
// workspaces with colliding base names never share a directory.
func WorkspaceVectorDir(workspaceID string) string {
	return filepath.Join(Root(), "workspaces", workspaceKey(workspaceID), vectorDirName)
}

// WorkspaceMetadataPath returns the metadata store path scoped to a
// single workspace.
func WorkspaceMetadataPath(workspaceID string) string {
	return filepath.Join(Root(), "workspaces", workspaceKey(workspaceID), metadataFileName)
}

// workspaceKey derives a filesystem-safe, collision-resistant directory
// name from a workspace identity (typically an absolute path). Hashing
// rather than sanitizing the raw identity guarantees the result never
// contains a traversal segment, regardless of what the caller passes in.
func workspaceKey(workspaceID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(workspaceID)))
	return hex.EncodeToString(sum[:])[:24]
}

// EnsureDirectories idempotently creates every directory required for the
// given scope and takes a short-lived advisory lock while doing so, so
// concurrent docrag processes never race on first-run directory creation.
func EnsureDirectories(scope string, workspaceID string) error {
	dirs, err := dirsForScope(scope, workspaceID)
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(Root(), lockFileName))
	if err := os.MkdirAll(Root(), 0o755); err != nil {
		return fmt.Errorf("failed to create docrag root: %w", err)
	}
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire paths lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func dirsForScope(scope string, workspaceID string) ([]string, error) {
	switch scope {
	case "global":
		return []string{filepath.Dir(GlobalMetadataPath()), GlobalVectorDir()}, nil
	case "workspace":
		return []string{filepath.Dir(WorkspaceMetadataPath(workspaceID)), WorkspaceVectorDir(workspaceID)}, nil
	case "both":
		return []string{
			filepath.Dir(GlobalMetadataPath()), GlobalVectorDir(),
			filepath.Dir(WorkspaceMetadataPath(workspaceID)), WorkspaceVectorDir(workspaceID),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage scope %q", scope)
	}
}
