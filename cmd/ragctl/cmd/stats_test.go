package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCmdReportsEmptyStore(t *testing.T) {
	setupTestWorkspace(t)

	cmd := newStatsCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "Documents: 0")
}

func TestStatsCmdJSONOutput(t *testing.T) {
	setupTestWorkspace(t)
	jsonOutput = true

	cmd := newStatsCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), `"totalDocuments"`)
}
