package syncer

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/pokeapi"
)

var errMissingID = errors.New("upstream record has no id")

// decoded pairs a fetched detail with its parsed body.
type decoded[T any] struct {
	detail pokeapi.Detail
	value  T
}

// decodeDetails parses every successful detail. Fetch and parse errors are
// item failures and are only counted.
func decodeDetails[T any](details []pokeapi.Detail) ([]decoded[T], int) {
	out := make([]decoded[T], 0, len(details))
	failed := 0
	for _, d := range details {
		if d.Err != nil {
			failed++
			continue
		}
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			failed++
			continue
		}
		out = append(out, decoded[T]{detail: d, value: v})
	}
	return out, failed
}

func jsonColumn(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}

func checkID(id int, name string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %q", errMissingID, name)
	}
	return nil
}

// resolve keeps ref only when it points at a row that exists locally.
func resolve(ref *int, known map[int]bool) *int {
	if ref == nil || !known[*ref] {
		return nil
	}
	return ref
}

func toType(d pokeapi.TypeDetail) (entities.Type, error) {
	return entities.Type{
		ID:                d.ID,
		Name:              d.Name,
		GenerationID:      pokeapi.RefID(d.Generation),
		MoveDamageClassID: pokeapi.RefID(d.MoveDamageClass),
		DamageRelations:   jsonColumn(d.DamageRelations),
		GameIndices:       jsonColumn(d.GameIndices),
	}, checkID(d.ID, d.Name)
}

func toStat(d pokeapi.StatDetail) (entities.Stat, error) {
	return entities.Stat{
		ID:                d.ID,
		Name:              d.Name,
		GameIndex:         d.GameIndex,
		IsBattleOnly:      d.IsBattleOnly,
		MoveDamageClassID: pokeapi.RefID(d.MoveDamageClass),
	}, checkID(d.ID, d.Name)
}

func toEggGroup(d pokeapi.EggGroupDetail) (entities.EggGroup, error) {
	return entities.EggGroup{ID: d.ID, Name: d.Name, Names: jsonColumn(d.Names)}, checkID(d.ID, d.Name)
}

func toGrowthRate(d pokeapi.GrowthRateDetail) (entities.GrowthRate, error) {
	return entities.GrowthRate{
		ID:           d.ID,
		Name:         d.Name,
		Formula:      d.Formula,
		Descriptions: jsonColumn(d.Descriptions),
		Levels:       jsonColumn(d.Levels),
	}, checkID(d.ID, d.Name)
}

func toAbility(d pokeapi.AbilityDetail) (entities.Ability, error) {
	return entities.Ability{
		ID:                d.ID,
		Name:              d.Name,
		IsMainSeries:      d.IsMainSeries,
		GenerationID:      pokeapi.RefID(d.Generation),
		EffectEntries:     jsonColumn(d.EffectEntries),
		FlavorTextEntries: jsonColumn(d.FlavorTextEntries),
	}, checkID(d.ID, d.Name)
}

// toMove leaves TypeID unresolved; the caller checks it against local types.
func toMove(d pokeapi.MoveDetail) (entities.Move, error) {
	return entities.Move{
		ID:            d.ID,
		Name:          d.Name,
		Accuracy:      d.Accuracy,
		EffectChance:  d.EffectChance,
		PP:            d.PP,
		Priority:      d.Priority,
		Power:         d.Power,
		DamageClassID: pokeapi.RefID(d.DamageClass),
		TypeID:        pokeapi.RefID(d.Type),
		TargetID:      pokeapi.RefID(d.Target),
		GenerationID:  pokeapi.RefID(d.Generation),
		EffectEntries: jsonColumn(d.EffectEntries),
		Meta:          jsonColumn(d.Meta),
		StatChanges:   jsonColumn(d.StatChanges),
	}, checkID(d.ID, d.Name)
}

func toGeneration(d pokeapi.GenerationDetail) (entities.Generation, error) {
	return entities.Generation{
		ID:            d.ID,
		Name:          d.Name,
		MainRegionID:  pokeapi.RefID(d.MainRegion),
		VersionGroups: jsonColumn(d.VersionGroups),
	}, checkID(d.ID, d.Name)
}

func toColor(d pokeapi.NamesDetail) (entities.PokemonColor, error) {
	return entities.PokemonColor{ID: d.ID, Name: d.Name, Names: jsonColumn(d.Names)}, checkID(d.ID, d.Name)
}

func toHabitat(d pokeapi.NamesDetail) (entities.PokemonHabitat, error) {
	return entities.PokemonHabitat{ID: d.ID, Name: d.Name, Names: jsonColumn(d.Names)}, checkID(d.ID, d.Name)
}

func toShape(d pokeapi.ShapeDetail) (entities.PokemonShape, error) {
	return entities.PokemonShape{
		ID:           d.ID,
		Name:         d.Name,
		Names:        jsonColumn(d.Names),
		AwesomeNames: jsonColumn(d.AwesomeNames),
	}, checkID(d.ID, d.Name)
}

// toSpecies leaves the reference-phase ids unresolved.
func toSpecies(d pokeapi.SpeciesDetail) (entities.PokemonSpecies, error) {
	return entities.PokemonSpecies{
		ID:                   d.ID,
		Name:                 d.Name,
		SortOrder:            d.Order,
		GenderRate:           d.GenderRate,
		CaptureRate:          d.CaptureRate,
		BaseHappiness:        d.BaseHappiness,
		IsBaby:               d.IsBaby,
		IsLegendary:          d.IsLegendary,
		IsMythical:           d.IsMythical,
		HatchCounter:         d.HatchCounter,
		HasGenderDifferences: d.HasGenderDifferences,
		FormsSwitchable:      d.FormsSwitchable,
		GrowthRateID:         pokeapi.RefID(d.GrowthRate),
		HabitatID:            pokeapi.RefID(d.Habitat),
		GenerationID:         pokeapi.RefID(d.Generation),
		ColorID:              pokeapi.RefID(d.Color),
		ShapeID:              pokeapi.RefID(d.Shape),
		EvolutionChainID:     pokeapi.RefID(d.EvolutionChain),
		EggGroups:            jsonColumn(d.EggGroups),
		FlavorTextEntries:    jsonColumn(d.FlavorTextEntries),
		Genera:               jsonColumn(d.Genera),
		Names:                jsonColumn(d.Names),
		Varieties:            jsonColumn(d.Varieties),
	}, checkID(d.ID, d.Name)
}

func toPokemon(d pokeapi.PokemonDetail) (entities.Pokemon, error) {
	return entities.Pokemon{
		ID:             d.ID,
		Name:           d.Name,
		BaseExperience: d.BaseExperience,
		Height:         d.Height,
		Weight:         d.Weight,
		SortOrder:      d.Order,
		IsDefault:      d.IsDefault,
		SpeciesID:      pokeapi.RefID(d.Species),
		Sprites:        jsonColumn(d.Sprites),
		Cries:          jsonColumn(d.Cries),
		Forms:          jsonColumn(d.Forms),
		GameIndices:    jsonColumn(d.GameIndices),
	}, checkID(d.ID, d.Name)
}

// linkRefs is the set of ids one batch of pokemon details points at.
type linkRefs struct {
	types, abilities, stats []int
}

func collectLinkRefs(items []decoded[pokeapi.PokemonDetail]) linkRefs {
	var refs linkRefs
	for _, it := range items {
		for _, t := range it.value.Types {
			refs.types = append(refs.types, t.Type.ID())
		}
		for _, a := range it.value.Abilities {
			refs.abilities = append(refs.abilities, a.Ability.ID())
		}
		for _, s := range it.value.Stats {
			refs.stats = append(refs.stats, s.Stat.ID())
		}
	}
	return refs
}

// toLinks builds the relationship rows of one pokemon, dropping links to
// types, abilities or stats that are not stored locally.
func toLinks(d pokeapi.PokemonDetail, knownTypes, knownAbilities, knownStats map[int]bool) (types []entities.PokemonType, abilities []entities.PokemonAbility, stats []entities.PokemonStat) {
	for _, t := range d.Types {
		if id := t.Type.ID(); knownTypes[id] {
			types = append(types, entities.PokemonType{PokemonID: d.ID, Slot: t.Slot, TypeID: id})
		}
	}
	for _, a := range d.Abilities {
		if id := a.Ability.ID(); knownAbilities[id] {
			abilities = append(abilities, entities.PokemonAbility{PokemonID: d.ID, Slot: a.Slot, AbilityID: id, IsHidden: a.IsHidden})
		}
	}
	for _, s := range d.Stats {
		if id := s.Stat.ID(); knownStats[id] {
			stats = append(stats, entities.PokemonStat{PokemonID: d.ID, StatID: id, BaseStat: s.BaseStat, Effort: s.Effort})
		}
	}
	return types, abilities, stats
}
