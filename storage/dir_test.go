package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirMakeTemporary(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	var d Dir
	require.NoError(t, d.Make(tmp, ""))
	assert.True(t, strings.HasPrefix(filepath.Base(d.Dir), "k6-acceptance-data-"))

	_, err := os.Stat(d.Dir)
	require.NoError(t, err)

	require.NoError(t, d.Cleanup())
	_, err = os.Stat(d.Dir)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, d.Cleanup(), "second cleanup")
}

func TestDirMakeUserProvided(t *testing.T) {
	t.Parallel()

	user := t.TempDir()
	var d Dir
	require.NoError(t, d.Make("", user))
	assert.Equal(t, user, d.Dir)

	require.NoError(t, d.Cleanup())
	_, err := os.Stat(user)
	assert.NoError(t, err, "user directory must be kept")
}
