package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActCmdArgsAndFlags(t *testing.T) {
	actCmd := newActCmd()

	require.Error(t, actCmd.Args(actCmd, []string{"https://app.example.com"}),
		"act needs both a URL and an instruction")
	require.NoError(t, actCmd.Args(actCmd, []string{"https://app.example.com", "click Login"}))

	timeout := actCmd.Flags().Lookup("timeout")
	require.NotNil(t, timeout)
	// The timeout bounds each browser call, not the instruction as a whole.
	assert.Contains(t, timeout.Usage, "each browser operation")

	retries := actCmd.Flags().Lookup("retries")
	require.NotNil(t, retries)
	assert.Equal(t, "1", retries.DefValue)
}
