package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venomqa/venomqa/internal/config"
)

func TestRunValidateConfig_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "explore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
explore:
  strategy: bfs
  max_steps: 50
sut:
  base_url: http://localhost:8080
`), 0o644))

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	cmd := validateConfigCmd
	require.NoError(t, runValidateConfig(cmd, nil))
}

func TestRunValidateConfig_MissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "explore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
explore:
  strategy: bfs
`), 0o644))

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	err := runValidateConfig(validateConfigCmd, nil)
	require.Error(t, err)
	require.True(t, IsConfigurationError(err))
}

func TestIsConfigurationError(t *testing.T) {
	require.True(t, IsConfigurationError(&config.Error{Reason: "x"}))
	require.False(t, IsConfigurationError(nil))
}

func TestRunValidateConfig_PrintConfigRedactsSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "explore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
explore:
  strategy: bfs
  max_steps: 50
sut:
  base_url: http://localhost:8080
  auth_bearer_token: super-secret-token
`), 0o644))

	cfgFile = path
	printConfigFormat = "yaml"
	t.Cleanup(func() { cfgFile = ""; printConfigFormat = "" })

	require.NoError(t, runValidateConfig(validateConfigCmd, nil))
}

func TestRunValidateConfig_PrintConfigRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "explore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
explore:
  strategy: bfs
  max_steps: 50
sut:
  base_url: http://localhost:8080
`), 0o644))

	cfgFile = path
	printConfigFormat = "xml"
	t.Cleanup(func() { cfgFile = ""; printConfigFormat = "" })

	err := runValidateConfig(validateConfigCmd, nil)
	require.Error(t, err)
	require.True(t, IsConfigurationError(err))
}
