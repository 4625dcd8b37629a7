// Package catalog stores mirrored upstream rows. Rows are upserted by primary
// key, so syncing the same id twice leaves one up-to-date row.
package catalog

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/catalogmirror/internal/entities"
)

const batchSize = 100

// Repository handles local catalog table operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// phaseTables maps each phase to the tables it writes.
var phaseTables = map[entities.Phase][]any{
	entities.PhaseMaster: {
		&entities.Type{}, &entities.Stat{}, &entities.EggGroup{},
		&entities.GrowthRate{}, &entities.Ability{}, &entities.Move{},
	},
	entities.PhaseReference: {
		&entities.Generation{}, &entities.PokemonColor{},
		&entities.PokemonHabitat{}, &entities.PokemonShape{},
	},
	entities.PhaseSpecies:       {&entities.PokemonSpecies{}},
	entities.PhaseEntity:        {&entities.Pokemon{}},
	entities.PhaseRelationships: {&entities.PokemonType{}, &entities.PokemonAbility{}, &entities.PokemonStat{}},
}

// Upsert inserts rows or updates them on a primary key conflict. rows must be
// a slice of one catalog model. conflict defaults to the "id" column.
func Upsert[T any](ctx context.Context, r *Repository, rows []T, conflict ...string) error {
	if len(rows) == 0 {
		return nil
	}
	if len(conflict) == 0 {
		conflict = []string{"id"}
	}
	columns := make([]clause.Column, 0, len(conflict))
	for _, name := range conflict {
		columns = append(columns, clause.Column{Name: name})
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: columns, UpdateAll: true}).
		CreateInBatches(&rows, batchSize).Error
	if err != nil {
		var zero T
		return fmt.Errorf("upsert %T: %w", zero, err)
	}
	return nil
}

// ExistingIDs returns which of ids are present in model's table.
func (r *Repository) ExistingIDs(ctx context.Context, model any, ids []int) (map[int]bool, error) {
	found := make(map[int]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var present []int
	if err := r.db.WithContext(ctx).Model(model).Where("id IN ?", ids).Pluck("id", &present).Error; err != nil {
		return nil, fmt.Errorf("lookup %T ids: %w", model, err)
	}
	for _, id := range present {
		found[id] = true
	}
	return found, nil
}

// Links is the relationship rows of a set of pokemon.
type Links struct {
	Types     []entities.PokemonType
	Abilities []entities.PokemonAbility
	Stats     []entities.PokemonStat
}

// ReplaceLinks swaps the relationship rows of pokemonIDs for links in one transaction.
func (r *Repository) ReplaceLinks(ctx context.Context, pokemonIDs []int, links Links) error {
	if len(pokemonIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&entities.PokemonType{}, &entities.PokemonAbility{}, &entities.PokemonStat{}} {
			if err := tx.Where("pokemon_id IN ?", pokemonIDs).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		if len(links.Types) > 0 {
			if err := tx.CreateInBatches(links.Types, batchSize).Error; err != nil {
				return fmt.Errorf("insert pokemon types: %w", err)
			}
		}
		if len(links.Abilities) > 0 {
			if err := tx.CreateInBatches(links.Abilities, batchSize).Error; err != nil {
				return fmt.Errorf("insert pokemon abilities: %w", err)
			}
		}
		if len(links.Stats) > 0 {
			if err := tx.CreateInBatches(links.Stats, batchSize).Error; err != nil {
				return fmt.Errorf("insert pokemon stats: %w", err)
			}
		}
		return nil
	})
}

// CountPhase sums the rows of every table a phase writes.
func (r *Repository) CountPhase(ctx context.Context, phase entities.Phase) (int64, error) {
	tables, ok := phaseTables[phase]
	if !ok {
		return 0, fmt.Errorf("unknown phase %q", phase)
	}
	var total int64
	for _, model := range tables {
		var n int64
		if err := r.db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
			return 0, fmt.Errorf("count %T: %w", model, err)
		}
		total += n
	}
	return total, nil
}

// CountByPhase returns CountPhase for every phase.
func (r *Repository) CountByPhase(ctx context.Context) (map[entities.Phase]int64, error) {
	counts := make(map[entities.Phase]int64, len(entities.Phases))
	for _, phase := range entities.Phases {
		n, err := r.CountPhase(ctx, phase)
		if err != nil {
			return nil, err
		}
		counts[phase] = n
	}
	return counts, nil
}
