package syncer

import (
	"context"
	"fmt"

	"github.com/mrlokans/catalogmirror/internal/database/catalog"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/pokeapi"
)

// itemCounts is the outcome of storing one segment.
type itemCounts struct {
	synced int
	failed int
}

// store writes one segment of fetched details for phase. Item problems are
// counted; only local-store errors are returned, as *StoreWriteError.
func (p *Processor) store(ctx context.Context, phase entities.Phase, kind Kind, details []pokeapi.Detail) (itemCounts, error) {
	switch phase {
	case entities.PhaseMaster:
		return p.storeMaster(ctx, kind, details)
	case entities.PhaseReference:
		return p.storeReference(ctx, kind, details)
	case entities.PhaseSpecies:
		return p.storeSpecies(ctx, details)
	case entities.PhaseEntity:
		return p.storePokemon(ctx, details)
	case entities.PhaseRelationships:
		return p.storeRelationships(ctx, details)
	default:
		return itemCounts{}, fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
}

func (p *Processor) storeMaster(ctx context.Context, kind Kind, details []pokeapi.Detail) (itemCounts, error) {
	switch kind {
	case KindType:
		return upsertAll(ctx, p.catalog, kind, details, toType)
	case KindStat:
		return upsertAll(ctx, p.catalog, kind, details, toStat)
	case KindEggGroup:
		return upsertAll(ctx, p.catalog, kind, details, toEggGroup)
	case KindGrowthRate:
		return upsertAll(ctx, p.catalog, kind, details, toGrowthRate)
	case KindAbility:
		return upsertAll(ctx, p.catalog, kind, details, toAbility)
	case KindMove:
		return p.storeMoves(ctx, details)
	default:
		return itemCounts{}, fmt.Errorf("kind %q does not belong to the master phase", kind)
	}
}

func (p *Processor) storeMoves(ctx context.Context, details []pokeapi.Detail) (itemCounts, error) {
	rows, counts := transformAll(details, toMove)

	typeIDs := make([]int, 0, len(rows))
	for _, m := range rows {
		if m.TypeID != nil {
			typeIDs = append(typeIDs, *m.TypeID)
		}
	}
	known, err := p.catalog.ExistingIDs(ctx, &entities.Type{}, typeIDs)
	if err != nil {
		return itemCounts{}, &StoreWriteError{Kind: KindMove, Err: err}
	}
	for i := range rows {
		rows[i].TypeID = resolve(rows[i].TypeID, known)
	}

	return upsertRows(ctx, p.catalog, KindMove, rows, counts)
}

func (p *Processor) storeReference(ctx context.Context, kind Kind, details []pokeapi.Detail) (itemCounts, error) {
	switch kind {
	case KindGeneration:
		return upsertAll(ctx, p.catalog, kind, details, toGeneration)
	case KindColor:
		return upsertAll(ctx, p.catalog, kind, details, toColor)
	case KindHabitat:
		return upsertAll(ctx, p.catalog, kind, details, toHabitat)
	case KindShape:
		return upsertAll(ctx, p.catalog, kind, details, toShape)
	default:
		return itemCounts{}, fmt.Errorf("kind %q does not belong to the reference phase", kind)
	}
}

func (p *Processor) storeSpecies(ctx context.Context, details []pokeapi.Detail) (itemCounts, error) {
	rows, counts := transformAll(details, toSpecies)

	refs := map[string][]int{}
	for _, s := range rows {
		appendRef(refs, "generation", s.GenerationID)
		appendRef(refs, "color", s.ColorID)
		appendRef(refs, "shape", s.ShapeID)
		appendRef(refs, "habitat", s.HabitatID)
		appendRef(refs, "growth_rate", s.GrowthRateID)
	}

	models := map[string]any{
		"generation":  &entities.Generation{},
		"color":       &entities.PokemonColor{},
		"shape":       &entities.PokemonShape{},
		"habitat":     &entities.PokemonHabitat{},
		"growth_rate": &entities.GrowthRate{},
	}
	known := make(map[string]map[int]bool, len(models))
	for name, model := range models {
		ids, err := p.catalog.ExistingIDs(ctx, model, refs[name])
		if err != nil {
			return itemCounts{}, &StoreWriteError{Kind: KindSpecies, Err: err}
		}
		known[name] = ids
	}

	for i := range rows {
		rows[i].GenerationID = resolve(rows[i].GenerationID, known["generation"])
		rows[i].ColorID = resolve(rows[i].ColorID, known["color"])
		rows[i].ShapeID = resolve(rows[i].ShapeID, known["shape"])
		rows[i].HabitatID = resolve(rows[i].HabitatID, known["habitat"])
		rows[i].GrowthRateID = resolve(rows[i].GrowthRateID, known["growth_rate"])
	}

	return upsertRows(ctx, p.catalog, KindSpecies, rows, counts)
}

func (p *Processor) storePokemon(ctx context.Context, details []pokeapi.Detail) (itemCounts, error) {
	rows, counts := transformAll(details, toPokemon)

	speciesIDs := make([]int, 0, len(rows))
	for _, r := range rows {
		if r.SpeciesID != nil {
			speciesIDs = append(speciesIDs, *r.SpeciesID)
		}
	}
	known, err := p.catalog.ExistingIDs(ctx, &entities.PokemonSpecies{}, speciesIDs)
	if err != nil {
		return itemCounts{}, &StoreWriteError{Kind: KindPokemon, Err: err}
	}
	for i := range rows {
		rows[i].SpeciesID = resolve(rows[i].SpeciesID, known)
	}

	return upsertRows(ctx, p.catalog, KindPokemon, rows, counts)
}

// storeRelationships replaces the type, ability and stat links of every
// pokemon in the segment. A pokemon that is not stored locally is an item failure.
func (p *Processor) storeRelationships(ctx context.Context, details []pokeapi.Detail) (itemCounts, error) {
	items, failed := decodeDetails[pokeapi.PokemonDetail](details)
	counts := itemCounts{failed: failed}

	ids := make([]int, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.value.ID)
	}
	present, err := p.catalog.ExistingIDs(ctx, &entities.Pokemon{}, ids)
	if err != nil {
		return itemCounts{}, &StoreWriteError{Kind: KindPokemon, Err: err}
	}

	stored := items[:0]
	for _, it := range items {
		if !present[it.value.ID] {
			counts.failed++
			continue
		}
		stored = append(stored, it)
	}

	refs := collectLinkRefs(stored)
	knownTypes, err := p.catalog.ExistingIDs(ctx, &entities.Type{}, refs.types)
	if err != nil {
		return itemCounts{}, &StoreWriteError{Kind: KindPokemon, Err: err}
	}
	knownAbilities, err := p.catalog.ExistingIDs(ctx, &entities.Ability{}, refs.abilities)
	if err != nil {
		return itemCounts{}, &StoreWriteError{Kind: KindPokemon, Err: err}
	}
	knownStats, err := p.catalog.ExistingIDs(ctx, &entities.Stat{}, refs.stats)
	if err != nil {
		return itemCounts{}, &StoreWriteError{Kind: KindPokemon, Err: err}
	}

	var links catalog.Links
	pokemonIDs := make([]int, 0, len(stored))
	for _, it := range stored {
		types, abilities, stats := toLinks(it.value, knownTypes, knownAbilities, knownStats)
		links.Types = append(links.Types, types...)
		links.Abilities = append(links.Abilities, abilities...)
		links.Stats = append(links.Stats, stats...)
		pokemonIDs = append(pokemonIDs, it.value.ID)
	}

	if err := p.catalog.ReplaceLinks(ctx, pokemonIDs, links); err != nil {
		return itemCounts{}, &StoreWriteError{Kind: KindPokemon, Err: err}
	}
	counts.synced = len(pokemonIDs)
	return counts, nil
}

// transformAll decodes details and maps them to rows. Decode and transform
// errors are counted as failures.
func transformAll[D any, R any](details []pokeapi.Detail, transform func(D) (R, error)) ([]R, itemCounts) {
	items, failed := decodeDetails[D](details)
	rows := make([]R, 0, len(items))
	for _, it := range items {
		row, err := transform(it.value)
		if err != nil {
			failed++
			continue
		}
		rows = append(rows, row)
	}
	return rows, itemCounts{failed: failed}
}

func upsertAll[D any, R any](ctx context.Context, repo *catalog.Repository, kind Kind, details []pokeapi.Detail, transform func(D) (R, error)) (itemCounts, error) {
	rows, counts := transformAll(details, transform)
	return upsertRows(ctx, repo, kind, rows, counts)
}

func upsertRows[R any](ctx context.Context, repo *catalog.Repository, kind Kind, rows []R, counts itemCounts) (itemCounts, error) {
	if err := catalog.Upsert(ctx, repo, rows); err != nil {
		return itemCounts{}, &StoreWriteError{Kind: kind, Err: err}
	}
	counts.synced = len(rows)
	return counts, nil
}

func appendRef(refs map[string][]int, name string, id *int) {
	if id != nil {
		refs[name] = append(refs[name], *id)
	}
}
