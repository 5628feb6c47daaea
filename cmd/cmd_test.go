package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["session"])
	assert.True(t, names["process"])
	assert.True(t, names["health"])
}

func TestParseContextPairs(t *testing.T) {
	t.Run("valid pairs", func(t *testing.T) {
		out, err := parseContextPairs([]string{"tenant=acme", "region=eu-west-1", "note=a=b"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"tenant": "acme",
			"region": "eu-west-1",
			"note":   "a=b",
		}, out)
	})

	t.Run("empty input", func(t *testing.T) {
		out, err := parseContextPairs(nil)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("missing separator", func(t *testing.T) {
		_, err := parseContextPairs([]string{"tenant"})
		assert.Error(t, err)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := parseContextPairs([]string{"=value"})
		assert.Error(t, err)
	})
}
