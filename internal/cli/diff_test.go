package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extensivelabs/agentecs-viz/internal/core/diff"
	"github.com/extensivelabs/agentecs-viz/internal/core/models"
)

var (
	oldSnapshot = filepath.Join("testdata", "old.json")
	newSnapshot = filepath.Join("testdata", "new.json")
)

func TestDiffText(t *testing.T) {
	out, err := execute(t, "diff", oldSnapshot, newSnapshot)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "diff_text", []byte(out))
}

func TestDiffSingleEntity(t *testing.T) {
	out, err := execute(t, "diff", oldSnapshot, newSnapshot, "--entity", "3")
	require.NoError(t, err)
	assert.Equal(t, "entity 3: no changes\n", out)
}

func TestDiffJSON(t *testing.T) {
	out, err := execute(t, "diff", oldSnapshot, newSnapshot, "--format", "json")
	require.NoError(t, err)

	var diffs []diff.EntityDiff
	require.NoError(t, json.Unmarshal([]byte(out), &diffs))
	require.Len(t, diffs, 3)
	assert.Equal(t, models.EntityID(1), diffs[0].EntityID)
	assert.Equal(t, diff.KindChanged, diffs[0].Components[0].Kind)
	assert.Equal(t, diff.KindRemoved, diffs[1].Components[0].Kind)
	assert.Equal(t, diff.KindAdded, diffs[2].Components[0].Kind)
}

func TestDiffErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"diff", oldSnapshot, filepath.Join("testdata", "nope.json")}},
		{"not a snapshot frame", []string{"diff", oldSnapshot, filepath.Join("testdata", "error_frame.json")}},
		{"bad format", []string{"diff", oldSnapshot, newSnapshot, "--format", "yaml"}},
		{"wrong arg count", []string{"diff", oldSnapshot}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
