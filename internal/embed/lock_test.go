package embed

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockTryLock(t *testing.T) {
	dir := t.TempDir()
	lock := NewFileLock(dir)

	acquired, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	assert.True(t, lock.IsLocked())

	require.NoError(t, lock.Unlock())
	assert.False(t, lock.IsLocked())
}

func TestFileLockPath(t *testing.T) {
	dir := t.TempDir()
	lock := NewFileLock(dir)
	assert.Equal(t, filepath.Join(dir, ".download.lock"), lock.Path())
}

func TestFileLockUnlockIdempotent(t *testing.T) {
	dir := t.TempDir()
	lock := NewFileLock(dir)
	assert.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock())
}

func TestFileLockSecondTryLockFails(t *testing.T) {
	dir := t.TempDir()
	lockA := NewFileLock(dir)
	lockB := NewFileLock(dir)

	acquired, err := lockA.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer lockA.Unlock()

	acquired, err = lockB.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired)
}
