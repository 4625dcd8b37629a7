package syncer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/catalogmirror/internal/pokeapi"
)

func TestDecodeDetails_CountsFailures(t *testing.T) {
	details := []pokeapi.Detail{
		{ID: 1, Body: json.RawMessage(`{"id": 1, "name": "normal"}`)},
		{ID: 2, Err: errors.New("boom")},
		{ID: 3, Body: json.RawMessage(`{not json`)},
	}

	items, failed := decodeDetails[pokeapi.TypeDetail](details)
	require.Len(t, items, 1)
	assert.Equal(t, "normal", items[0].value.Name)
	assert.Equal(t, 2, failed)
}

func TestTransformAll_RejectsMissingID(t *testing.T) {
	details := []pokeapi.Detail{
		{Body: json.RawMessage(`{"id": 0, "name": "ghost"}`)},
		{Body: json.RawMessage(`{"id": 4, "name": "poison"}`)},
	}

	rows, counts := transformAll(details, toType)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].ID)
	assert.Equal(t, 1, counts.failed)
}

func TestToMove(t *testing.T) {
	body := `{
		"id": 33, "name": "tackle", "accuracy": 100, "pp": 35, "priority": 0, "power": 40,
		"damage_class": {"name": "physical", "url": "https://pokeapi.co/api/v2/move-damage-class/2/"},
		"type": {"name": "normal", "url": "https://pokeapi.co/api/v2/type/1/"},
		"target": {"name": "selected-pokemon", "url": "https://pokeapi.co/api/v2/move-target/10/"},
		"generation": {"name": "generation-i", "url": "https://pokeapi.co/api/v2/generation/1/"},
		"meta": null,
		"effect_entries": [{"effect": "Inflicts regular damage."}]
	}`
	var d pokeapi.MoveDetail
	require.NoError(t, json.Unmarshal([]byte(body), &d))

	m, err := toMove(d)
	require.NoError(t, err)
	assert.Equal(t, 33, m.ID)
	require.NotNil(t, m.Power)
	assert.Equal(t, 40, *m.Power)
	require.NotNil(t, m.TypeID)
	assert.Equal(t, 1, *m.TypeID)
	assert.Equal(t, 10, *m.TargetID)
	assert.Nil(t, m.EffectChance)
	assert.Nil(t, m.Meta, "JSON null is stored as NULL")
	assert.NotNil(t, m.EffectEntries)
}

func TestResolve(t *testing.T) {
	known := map[int]bool{1: true}
	one, two := 1, 2

	assert.Equal(t, &one, resolve(&one, known))
	assert.Nil(t, resolve(&two, known))
	assert.Nil(t, resolve(nil, known))
}

func TestToLinks_DropsUnknownReferences(t *testing.T) {
	body := `{
		"id": 1, "name": "bulbasaur",
		"types": [
			{"slot": 1, "type": {"name": "grass", "url": "https://pokeapi.co/api/v2/type/12/"}},
			{"slot": 2, "type": {"name": "poison", "url": "https://pokeapi.co/api/v2/type/4/"}}
		],
		"abilities": [
			{"slot": 1, "is_hidden": false, "ability": {"name": "overgrow", "url": "https://pokeapi.co/api/v2/ability/65/"}},
			{"slot": 3, "is_hidden": true, "ability": {"name": "chlorophyll", "url": "https://pokeapi.co/api/v2/ability/34/"}}
		],
		"stats": [
			{"base_stat": 45, "effort": 0, "stat": {"name": "hp", "url": "https://pokeapi.co/api/v2/stat/1/"}}
		]
	}`
	var d pokeapi.PokemonDetail
	require.NoError(t, json.Unmarshal([]byte(body), &d))

	types, abilities, stats := toLinks(d,
		map[int]bool{12: true},
		map[int]bool{65: true, 34: true},
		map[int]bool{},
	)

	require.Len(t, types, 1)
	assert.Equal(t, 12, types[0].TypeID)
	require.Len(t, abilities, 2)
	assert.True(t, abilities[1].IsHidden)
	assert.Empty(t, stats)

	refs := collectLinkRefs([]decoded[pokeapi.PokemonDetail]{{value: d}})
	assert.Equal(t, []int{12, 4}, refs.types)
	assert.Equal(t, []int{65, 34}, refs.abilities)
	assert.Equal(t, []int{1}, refs.stats)
}
