package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onevoice/ivr/backend/internal/config"
)

func TestRootCommandWiring(t *testing.T) {
	root := buildRootCommand()
	assert.Equal(t, "onevoice", root.Use)
	assert.NotNil(t, root.RunE)

	serveCmd, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serveCmd.Name())

	statsCmd, _, err := root.Find([]string{"stats"})
	require.NoError(t, err)
	assert.Equal(t, "stats", statsCmd.Name())
	assert.NotNil(t, statsCmd.Flags().Lookup("date"))
}

func TestOpenCallLogFallsBackToMemory(t *testing.T) {
	store, err := openCallLog(config.AnalyticsConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}
