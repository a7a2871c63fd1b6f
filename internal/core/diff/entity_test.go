package diff

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extensivelabs/agentecs-viz/internal/core/models"
)

func position(x float64) models.Component {
	return models.Component{TypeFull: "sim.Position", TypeShort: "Position", Data: map[string]any{"x": x, "y": 0.0}}
}

func TestEntitiesSingleFieldChange(t *testing.T) {
	before := models.Entity{ID: 1, Components: []models.Component{position(10)}}
	after := models.Entity{ID: 1, Components: []models.Component{position(20)}}

	d := Entities(&before, &after)
	require.Equal(t, 1, d.TotalChanges)
	require.Len(t, d.Components, 1)
	assert.Equal(t, KindChanged, d.Components[0].Kind)
	assert.Equal(t, FieldChange{Path: []string{"Position", "x"}, OldValue: 10.0, NewValue: 20.0, Kind: KindChanged}, d.Components[0].Changes[0])
}

func TestEntitiesWholeComponentAddRemove(t *testing.T) {
	before := models.Entity{ID: 4, Components: []models.Component{
		position(1),
		{TypeShort: "Burning", Data: map[string]any{"ticks": 3.0}},
	}}
	after := models.Entity{ID: 4, Components: []models.Component{
		position(1),
		{TypeShort: "Velocity", Data: map[string]any{"dx": 1.0, "dy": -1.0}},
	}}

	d := Entities(&before, &after)
	require.Len(t, d.Components, 2)

	burning := d.Components[0]
	assert.Equal(t, "Burning", burning.TypeShort)
	assert.Equal(t, KindRemoved, burning.Kind)
	assert.Equal(t, []FieldChange{{Path: []string{"Burning", "ticks"}, OldValue: 3.0, Kind: KindRemoved}}, burning.Changes)

	velocity := d.Components[1]
	assert.Equal(t, KindAdded, velocity.Kind)
	assert.Len(t, velocity.Changes, 2)
	assert.Equal(t, 3, d.TotalChanges)
}

func TestEntitiesMatchesByTypeNotOrder(t *testing.T) {
	health := models.Component{TypeShort: "Health", Data: map[string]any{"hp": 5.0}}
	before := models.Entity{ID: 2, Components: []models.Component{position(1), health}}
	after := models.Entity{ID: 2, Components: []models.Component{health, position(1)}}

	d := Entities(&before, &after)
	assert.True(t, d.Empty())
}

func TestEntitiesMissingSide(t *testing.T) {
	e := models.Entity{ID: 9, Components: []models.Component{position(3)}}

	created := Entities(nil, &e)
	assert.Equal(t, models.EntityID(9), created.EntityID)
	assert.Equal(t, KindAdded, created.Components[0].Kind)
	assert.Equal(t, 2, created.TotalChanges)

	deleted := Entities(&e, nil)
	assert.Equal(t, KindRemoved, deleted.Components[0].Kind)

	assert.True(t, Entities(nil, nil).Empty())
}

func TestWriteGolden(t *testing.T) {
	before := models.Entity{ID: 7, Components: []models.Component{
		position(10),
		{TypeShort: "Name", Data: map[string]any{"value": "rat"}},
	}}
	after := models.Entity{ID: 7, Components: []models.Component{
		position(20),
		{TypeShort: "Tags", Data: map[string]any{"list": []any{"hostile"}}},
	}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Entities(&before, &after)))

	g := goldie.New(t)
	g.Assert(t, "entity_diff", buf.Bytes())
}

func TestWriteNoChanges(t *testing.T) {
	e := models.Entity{ID: 3, Components: []models.Component{position(1)}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Entities(&e, &e)))
	assert.Equal(t, "entity 3: no changes\n", buf.String())
}
