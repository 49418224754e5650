package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmickel/gno/internal/config"
)

func TestConfigCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	configCmd, _, err := cmd.Find([]string{"config"})
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, sc := range configCmd.Commands() {
		names[sc.Name()] = true
	}
	assert.True(t, names["init"])
	assert.True(t, names["show"])
	assert.True(t, names["path"])
}

func TestConfigInitCmd_HasForceFlag(t *testing.T) {
	cmd := NewRootCmd()

	initCmd, _, err := cmd.Find([]string{"config", "init"})
	require.NoError(t, err)

	flag := initCmd.Flags().Lookup("force")
	assert.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestConfigPathCmd_OutputsPath(t *testing.T) {
	setGnoEnv(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "path"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "index.yml")
}

func TestRunConfigInit_NewFile(t *testing.T) {
	setGnoEnv(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "init"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Created")

	path, err := config.ConfigFilePath()
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err, "config file should exist")
}

func TestRunConfigInit_AlreadyExists(t *testing.T) {
	setGnoEnv(t)

	path, err := config.ConfigFilePath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("collections: []\n"), 0o644))

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "init"})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "already exists")
	assert.Contains(t, output, "--force")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "collections: []\n", string(data))
}

func TestRunConfigShow_Defaults(t *testing.T) {
	setGnoEnv(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "show"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "retrieval")
}

func TestRunConfigShow_JSONOutput(t *testing.T) {
	setGnoEnv(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"config", "show", "--json"})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "{")
	assert.Contains(t, output, "}")
}
