package entities

import (
	"time"

	"gorm.io/datatypes"
)

// Master phase

type Type struct {
	ID                int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name              string         `gorm:"size:64;not null" json:"name"`
	GenerationID      *int           `json:"generation_id,omitempty"`
	MoveDamageClassID *int           `json:"move_damage_class_id,omitempty"`
	DamageRelations   datatypes.JSON `json:"damage_relations,omitempty"`
	GameIndices       datatypes.JSON `json:"game_indices,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (Type) TableName() string { return "types" }

type Stat struct {
	ID                int       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name              string    `gorm:"size:64;not null" json:"name"`
	GameIndex         int       `json:"game_index"`
	IsBattleOnly      bool      `json:"is_battle_only"`
	MoveDamageClassID *int      `json:"move_damage_class_id,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Stat) TableName() string { return "stats" }

type EggGroup struct {
	ID        int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string         `gorm:"size:64;not null" json:"name"`
	Names     datatypes.JSON `json:"names,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (EggGroup) TableName() string { return "egg_groups" }

type GrowthRate struct {
	ID           int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name         string         `gorm:"size:64;not null" json:"name"`
	Formula      string         `gorm:"type:text" json:"formula"`
	Descriptions datatypes.JSON `json:"descriptions,omitempty"`
	Levels       datatypes.JSON `json:"levels,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (GrowthRate) TableName() string { return "growth_rates" }

type Ability struct {
	ID                int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name              string         `gorm:"size:64;not null" json:"name"`
	IsMainSeries      bool           `json:"is_main_series"`
	GenerationID      *int           `json:"generation_id,omitempty"`
	EffectEntries     datatypes.JSON `json:"effect_entries,omitempty"`
	FlavorTextEntries datatypes.JSON `json:"flavor_text_entries,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (Ability) TableName() string { return "abilities" }

type Move struct {
	ID            int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name          string         `gorm:"size:64;not null" json:"name"`
	Accuracy      *int           `json:"accuracy,omitempty"`
	EffectChance  *int           `json:"effect_chance,omitempty"`
	PP            *int           `gorm:"column:pp" json:"pp,omitempty"`
	Priority      int            `json:"priority"`
	Power         *int           `json:"power,omitempty"`
	DamageClassID *int           `json:"damage_class_id,omitempty"`
	TypeID        *int           `gorm:"index" json:"type_id,omitempty"`
	TargetID      *int           `json:"target_id,omitempty"`
	GenerationID  *int           `json:"generation_id,omitempty"`
	EffectEntries datatypes.JSON `json:"effect_entries,omitempty"`
	Meta          datatypes.JSON `json:"meta,omitempty"`
	StatChanges   datatypes.JSON `json:"stat_changes,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Move) TableName() string { return "moves" }

// Reference phase

type Generation struct {
	ID            int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name          string         `gorm:"size:64;not null" json:"name"`
	MainRegionID  *int           `json:"main_region_id,omitempty"`
	VersionGroups datatypes.JSON `json:"version_groups,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Generation) TableName() string { return "generations" }

type PokemonColor struct {
	ID        int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string         `gorm:"size:64;not null" json:"name"`
	Names     datatypes.JSON `json:"names,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (PokemonColor) TableName() string { return "pokemon_colors" }

type PokemonHabitat struct {
	ID        int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string         `gorm:"size:64;not null" json:"name"`
	Names     datatypes.JSON `json:"names,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (PokemonHabitat) TableName() string { return "pokemon_habitats" }

type PokemonShape struct {
	ID           int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name         string         `gorm:"size:64;not null" json:"name"`
	Names        datatypes.JSON `json:"names,omitempty"`
	AwesomeNames datatypes.JSON `json:"awesome_names,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (PokemonShape) TableName() string { return "pokemon_shapes" }

// Species phase

type PokemonSpecies struct {
	ID                   int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name                 string         `gorm:"size:64;not null" json:"name"`
	SortOrder            int            `json:"order"`
	GenderRate           int            `json:"gender_rate"`
	CaptureRate          int            `json:"capture_rate"`
	BaseHappiness        *int           `json:"base_happiness,omitempty"`
	IsBaby               bool           `json:"is_baby"`
	IsLegendary          bool           `json:"is_legendary"`
	IsMythical           bool           `json:"is_mythical"`
	HatchCounter         *int           `json:"hatch_counter,omitempty"`
	HasGenderDifferences bool           `json:"has_gender_differences"`
	FormsSwitchable      bool           `json:"forms_switchable"`
	GrowthRateID         *int           `json:"growth_rate_id,omitempty"`
	HabitatID            *int           `json:"habitat_id,omitempty"`
	GenerationID         *int           `gorm:"index" json:"generation_id,omitempty"`
	ColorID              *int           `json:"color_id,omitempty"`
	ShapeID              *int           `json:"shape_id,omitempty"`
	EvolutionChainID     *int           `json:"evolution_chain_id,omitempty"`
	EggGroups            datatypes.JSON `json:"egg_groups,omitempty"`
	FlavorTextEntries    datatypes.JSON `json:"flavor_text_entries,omitempty"`
	Genera               datatypes.JSON `json:"genera,omitempty"`
	Names                datatypes.JSON `json:"names,omitempty"`
	Varieties            datatypes.JSON `json:"varieties,omitempty"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (PokemonSpecies) TableName() string { return "pokemon_species" }

// Entity phase

type Pokemon struct {
	ID             int            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name           string         `gorm:"size:64;not null" json:"name"`
	BaseExperience *int           `json:"base_experience,omitempty"`
	Height         int            `json:"height"`
	Weight         int            `json:"weight"`
	SortOrder      int            `json:"order"`
	IsDefault      bool           `json:"is_default"`
	SpeciesID      *int           `gorm:"index" json:"species_id,omitempty"`
	Sprites        datatypes.JSON `json:"sprites,omitempty"`
	Cries          datatypes.JSON `json:"cries,omitempty"`
	Forms          datatypes.JSON `json:"forms,omitempty"`
	GameIndices    datatypes.JSON `json:"game_indices,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Pokemon) TableName() string { return "pokemon" }

// Relationships phase

type PokemonType struct {
	PokemonID int `gorm:"primaryKey;autoIncrement:false" json:"pokemon_id"`
	Slot      int `gorm:"primaryKey;autoIncrement:false" json:"slot"`
	TypeID    int `gorm:"index;not null" json:"type_id"`
}

func (PokemonType) TableName() string { return "pokemon_types" }

type PokemonAbility struct {
	PokemonID int  `gorm:"primaryKey;autoIncrement:false" json:"pokemon_id"`
	Slot      int  `gorm:"primaryKey;autoIncrement:false" json:"slot"`
	AbilityID int  `gorm:"index;not null" json:"ability_id"`
	IsHidden  bool `json:"is_hidden"`
}

func (PokemonAbility) TableName() string { return "pokemon_abilities" }

type PokemonStat struct {
	PokemonID int `gorm:"primaryKey;autoIncrement:false" json:"pokemon_id"`
	StatID    int `gorm:"primaryKey;autoIncrement:false" json:"stat_id"`
	BaseStat  int `json:"base_stat"`
	Effort    int `json:"effort"`
}

func (PokemonStat) TableName() string { return "pokemon_stats" }

// CatalogModels lists every local-store table in migration order.
func CatalogModels() []any {
	return []any{
		&Type{}, &Stat{}, &EggGroup{}, &GrowthRate{}, &Ability{}, &Move{},
		&Generation{}, &PokemonColor{}, &PokemonHabitat{}, &PokemonShape{},
		&PokemonSpecies{},
		&Pokemon{},
		&PokemonType{}, &PokemonAbility{}, &PokemonStat{},
	}
}
