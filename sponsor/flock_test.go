//go:build unix

package sponsor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFile)

	fl1, err := tryLock(path)
	require.NoError(t, err)

	fl2, err := tryLock(path)
	assert.ErrorIs(t, err, ErrDataDirLocked)
	assert.Nil(t, fl2)

	releaseLock(fl1)
	fl3, err := tryLock(path)
	require.NoError(t, err)
	releaseLock(fl3)
}

func TestReleaseLock_Nil(t *testing.T) {
	assert.NotPanics(t, func() { releaseLock(nil) })
}
