//go:build linux || darwin

package sys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeSpace(t *testing.T) {
	free, err := FreeSpace(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}

func TestFreeSpaceMissingPath(t *testing.T) {
	_, err := FreeSpace("/definitely/not/here")
	assert.Error(t, err)
}
