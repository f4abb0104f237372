package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTasksRestore_RequiresKey(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"tasks", "restore"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--key")
}

func TestTasksRestore_HelpWarnsToStopServer(t *testing.T) {
	assert.Contains(t, tasksRestoreCmd.Long, "Stop the API server before restoring")
}
