package compiler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/metadata/pkg/domain"
	"github.com/wilhg/metadata/pkg/errmodel"
)

func param(t *testing.T, name string, typ domain.ParameterType, version int) *domain.SchemaParameter {
	t.Helper()
	p, err := domain.NewSchemaParameter(name, typ, version)
	require.NoError(t, err)
	return p
}

func levelUp(t *testing.T) *domain.Event {
	t.Helper()
	ev, err := domain.NewGameSpecificEvent("game", "level_up", "", "Level reached", time.Now())
	require.NoError(t, err)
	require.NoError(t, ev.AddParameters([]*domain.SchemaParameter{param(t, "level", domain.TypeInteger, 0)}, time.Now()))
	ev.Schema.ID = 1
	require.NoError(t, ev.AddParameters([]*domain.SchemaParameter{
		param(t, "rewards", domain.TypeMapNumber, 1),
		param(t, "reached_at", domain.TypeDatetime, 1),
	}, time.Now()))
	return ev
}

func TestDocumentsOnePerVersion(t *testing.T) {
	docs, err := Documents(levelUp(t))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "com.algebraai.gametuner.gamespecific.game/level_up/jsonschema/1-0-0", docs[0].Path)
	assert.Equal(t, "com.algebraai.gametuner.gamespecific.game/level_up/jsonschema/1-0-1", docs[1].Path)

	var v0, v1 map[string]any
	require.NoError(t, json.Unmarshal(docs[0].Body, &v0))
	require.NoError(t, json.Unmarshal(docs[1].Body, &v1))

	assert.Equal(t, SelfDescribingMetaSchema, v0["$schema"])
	assert.Equal(t, false, v0["additionalProperties"])
	assert.Equal(t, "Level reached", v0["description"])
	assert.Equal(t, map[string]any{
		"vendor": "com.algebraai.gametuner.gamespecific.game", "name": "level_up",
		"format": "jsonschema", "version": "1-0-0",
	}, v0["self"])
	assert.Len(t, v0["properties"], 1)
	assert.Len(t, v1["properties"], 3)

	props := v1["properties"].(map[string]any)
	assert.Equal(t, "string", props["reached_at"].(map[string]any)["type"])
	rewards := props["rewards"].(map[string]any)
	assert.Equal(t, "array", rewards["type"])
	items := rewards["items"].(map[string]any)
	assert.Equal(t, []any{"key", "value"}, items["required"])
	assert.Equal(t, false, items["additionalProperties"])
	assert.Equal(t, "number", items["properties"].(map[string]any)["value"].(map[string]any)["type"])
}

func TestDocumentsWithoutParameters(t *testing.T) {
	ev, err := domain.NewGameSpecificEvent("game", "app_open", "", "", time.Now())
	require.NoError(t, err)
	docs, err := Documents(ev)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "com.algebraai.gametuner.gamespecific.game/app_open/jsonschema/1-0-0", docs[0].Path)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(docs[0].Body, &doc))
	assert.Contains(t, doc, "description")
	assert.Equal(t, "", doc["description"])
}

func TestDocumentsAlwaysCarryDescriptions(t *testing.T) {
	docs, err := Documents(levelUp(t))
	require.NoError(t, err)
	var v1 map[string]any
	require.NoError(t, json.Unmarshal(docs[1].Body, &v1))
	props := v1["properties"].(map[string]any)
	for _, name := range []string{"level", "rewards", "reached_at"} {
		prop := props[name].(map[string]any)
		assert.Contains(t, prop, "description", name)
		assert.Equal(t, "", prop["description"], name)
	}
}

func TestContextDocumentsUseOverrideName(t *testing.T) {
	s, err := domain.NewSchema(domain.ContextVendor, "ctx_event_context", param(t, "session_id", domain.TypeString, 0))
	require.NoError(t, err)
	c, err := domain.NewEventContext(s, true, time.Now())
	require.NoError(t, err)
	docs, err := Documents(c)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "com.algebraai.gametuner.context/event_context/jsonschema/1-0-0", docs[0].Path)
}

func TestGeneratedDocumentsValidatePayloads(t *testing.T) {
	docs, err := Documents(levelUp(t))
	require.NoError(t, err)
	latest := docs[1].Body
	require.NoError(t, CheckDocument(latest))

	require.NoError(t, ValidateInstance(latest, []byte(`{"level": 3, "rewards": [{"key": "gold", "value": 1.5}]}`)))

	err = ValidateInstance(latest, []byte(`{"level": "three"}`))
	assert.True(t, errmodel.IsValidation(err))
	err = ValidateInstance(latest, []byte(`{"unknown": 1}`))
	assert.Error(t, err)
	err = ValidateInstance(docs[0].Body, []byte(`{"rewards": []}`))
	assert.Error(t, err, "version 0 does not know rewards")
}

func TestCheckDocumentRejectsInvalidSchema(t *testing.T) {
	assert.Error(t, CheckDocument([]byte(`{"type": 5}`)))
	assert.Error(t, CheckDocument([]byte(`{`)))
	assert.NoError(t, CheckDocument([]byte(`{"$schema": "`+SelfDescribingMetaSchema+`", "type": "object"}`)))
}
