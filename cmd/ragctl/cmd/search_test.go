package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCmdFindsIndexedContent(t *testing.T) {
	setupTestWorkspace(t)

	docPath := filepath.Join(workspaceRoot, "policy.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("Employees receive medical benefits after ninety days."), 0o644))

	indexCmd := newIndexCmd()
	indexCmd.SetOut(&bytes.Buffer{})
	indexCmd.SetArgs([]string{docPath, "--scope", "policy_manual"})
	require.NoError(t, indexCmd.Execute())

	searchCmd := newSearchCmd()
	var stdout bytes.Buffer
	searchCmd.SetOut(&stdout)
	searchCmd.SetArgs([]string{"medical", "benefits", "--scope", "policy_manual"})
	require.NoError(t, searchCmd.Execute())

	assert.Contains(t, stdout.String(), "policy.txt")
}

func TestSearchCmdJSONOutput(t *testing.T) {
	setupTestWorkspace(t)
	jsonOutput = true

	searchCmd := newSearchCmd()
	var stdout bytes.Buffer
	searchCmd.SetOut(&stdout)
	searchCmd.SetArgs([]string{"nothing indexed yet"})
	require.NoError(t, searchCmd.Execute())

	assert.Contains(t, stdout.String(), `"totalResults"`)
}
