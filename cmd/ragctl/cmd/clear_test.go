package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearCmdRefusesWithoutConfirmation(t *testing.T) {
	setupTestWorkspace(t)

	cmd := newClearCmd()
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestClearCmdPurgesWithConfirmation(t *testing.T) {
	setupTestWorkspace(t)

	cmd := newClearCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--yes"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "cleared")
}
