package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extensivelabs/agentecs-viz/internal/config"
	"github.com/extensivelabs/agentecs-viz/internal/core/transport"
	"github.com/extensivelabs/agentecs-viz/internal/core/world"
)

func TestInitializeApp(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "silent"

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, cfg.URL, app.Transport.URL())
	assert.Equal(t, transport.StateDisconnected, app.Store.ConnectionState())
	assert.Equal(t, world.ModeLive, app.Store.PlaybackMode())
	assert.Equal(t, cfg.Replay.DefaultSpeed, app.Store.Speed())
}
