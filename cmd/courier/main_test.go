package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"login", "logout", "status", "token", "track"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestLoginFlags(t *testing.T) {
	require.NotNil(t, loginCmd.Flag("user-id"))
	require.NotNil(t, loginCmd.Flag("access-token"))
	require.NotNil(t, loginCmd.Flag("client-key"))
}

func TestNewClientUsesFlags(t *testing.T) {
	sessionDir = t.TempDir()
	baseURL = "https://api.example.test"

	c := newClient()
	require.NotNil(t, c)
	assert.False(t, c.IsSignedIn())
}
