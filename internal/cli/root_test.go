package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "agentecs-viz", cmd.Use)

	for _, name := range []string{"watch", "diff", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("url"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "agentecs-viz dev\n", out)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	cfg, err := loadConfig(&RootOptions{URL: "quic://127.0.0.1:4433", LogLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, "quic://127.0.0.1:4433", cfg.URL)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = loadConfig(&RootOptions{URL: "ftp://nope"})
	assert.Error(t, err)
}
