package pokeapi

import (
	"encoding/json"
	"regexp"
	"strconv"
)

var trailingID = regexp.MustCompile(`/(\d+)/?$`)

// IDFromURL extracts the numeric id at the end of a resource URL, or 0.
func IDFromURL(url string) int {
	m := trailingID.FindStringSubmatch(url)
	if m == nil {
		return 0
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return id
}

// NamedResource is a reference to another resource.
type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ID returns the referenced id, or 0.
func (r NamedResource) ID() int {
	return IDFromURL(r.URL)
}

// RefID returns the id of an optional reference, nil when absent.
func RefID(r *NamedResource) *int {
	if r == nil {
		return nil
	}
	id := r.ID()
	if id == 0 {
		return nil
	}
	return &id
}

// ResourceList is one page of a listing endpoint.
type ResourceList struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []NamedResource `json:"results"`
}

type TypeDetail struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	Generation      *NamedResource  `json:"generation"`
	MoveDamageClass *NamedResource  `json:"move_damage_class"`
	DamageRelations json.RawMessage `json:"damage_relations"`
	GameIndices     json.RawMessage `json:"game_indices"`
}

type StatDetail struct {
	ID              int            `json:"id"`
	Name            string         `json:"name"`
	GameIndex       int            `json:"game_index"`
	IsBattleOnly    bool           `json:"is_battle_only"`
	MoveDamageClass *NamedResource `json:"move_damage_class"`
}

type EggGroupDetail struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Names json.RawMessage `json:"names"`
}

type GrowthRateDetail struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Formula      string          `json:"formula"`
	Descriptions json.RawMessage `json:"descriptions"`
	Levels       json.RawMessage `json:"levels"`
}

type AbilityDetail struct {
	ID                int             `json:"id"`
	Name              string          `json:"name"`
	IsMainSeries      bool            `json:"is_main_series"`
	Generation        *NamedResource  `json:"generation"`
	EffectEntries     json.RawMessage `json:"effect_entries"`
	FlavorTextEntries json.RawMessage `json:"flavor_text_entries"`
}

type MoveDetail struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	Accuracy      *int            `json:"accuracy"`
	EffectChance  *int            `json:"effect_chance"`
	PP            *int            `json:"pp"`
	Priority      int             `json:"priority"`
	Power         *int            `json:"power"`
	DamageClass   *NamedResource  `json:"damage_class"`
	Type          *NamedResource  `json:"type"`
	Target        *NamedResource  `json:"target"`
	Generation    *NamedResource  `json:"generation"`
	EffectEntries json.RawMessage `json:"effect_entries"`
	Meta          json.RawMessage `json:"meta"`
	StatChanges   json.RawMessage `json:"stat_changes"`
}

type GenerationDetail struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	MainRegion    *NamedResource  `json:"main_region"`
	VersionGroups json.RawMessage `json:"version_groups"`
}

// NamesDetail covers the small lookup kinds (color, habitat).
type NamesDetail struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Names json.RawMessage `json:"names"`
}

type ShapeDetail struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Names        json.RawMessage `json:"names"`
	AwesomeNames json.RawMessage `json:"awesome_names"`
}

type SpeciesDetail struct {
	ID                   int             `json:"id"`
	Name                 string          `json:"name"`
	Order                int             `json:"order"`
	GenderRate           int             `json:"gender_rate"`
	CaptureRate          int             `json:"capture_rate"`
	BaseHappiness        *int            `json:"base_happiness"`
	IsBaby               bool            `json:"is_baby"`
	IsLegendary          bool            `json:"is_legendary"`
	IsMythical           bool            `json:"is_mythical"`
	HatchCounter         *int            `json:"hatch_counter"`
	HasGenderDifferences bool            `json:"has_gender_differences"`
	FormsSwitchable      bool            `json:"forms_switchable"`
	GrowthRate           *NamedResource  `json:"growth_rate"`
	Habitat              *NamedResource  `json:"habitat"`
	Generation           *NamedResource  `json:"generation"`
	Color                *NamedResource  `json:"color"`
	Shape                *NamedResource  `json:"shape"`
	EvolutionChain       *NamedResource  `json:"evolution_chain"`
	EggGroups            json.RawMessage `json:"egg_groups"`
	FlavorTextEntries    json.RawMessage `json:"flavor_text_entries"`
	Genera               json.RawMessage `json:"genera"`
	Names                json.RawMessage `json:"names"`
	Varieties            json.RawMessage `json:"varieties"`
}

type PokemonDetail struct {
	ID             int                  `json:"id"`
	Name           string               `json:"name"`
	BaseExperience *int                 `json:"base_experience"`
	Height         int                  `json:"height"`
	Weight         int                  `json:"weight"`
	Order          int                  `json:"order"`
	IsDefault      bool                 `json:"is_default"`
	Species        *NamedResource       `json:"species"`
	Sprites        json.RawMessage      `json:"sprites"`
	Cries          json.RawMessage      `json:"cries"`
	Forms          json.RawMessage      `json:"forms"`
	GameIndices    json.RawMessage      `json:"game_indices"`
	Types          []PokemonTypeSlot    `json:"types"`
	Abilities      []PokemonAbilitySlot `json:"abilities"`
	Stats          []PokemonStatEntry   `json:"stats"`
}

type PokemonTypeSlot struct {
	Slot int           `json:"slot"`
	Type NamedResource `json:"type"`
}

type PokemonAbilitySlot struct {
	Slot     int           `json:"slot"`
	IsHidden bool          `json:"is_hidden"`
	Ability  NamedResource `json:"ability"`
}

type PokemonStatEntry struct {
	BaseStat int           `json:"base_stat"`
	Effort   int           `json:"effort"`
	Stat     NamedResource `json:"stat"`
}
