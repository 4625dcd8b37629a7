package syncer

import (
	"fmt"

	"github.com/mrlokans/catalogmirror/internal/entities"
)

// Kind is an upstream resource kind, named as in its listing path.
type Kind string

const (
	KindType       Kind = "type"
	KindStat       Kind = "stat"
	KindEggGroup   Kind = "egg-group"
	KindGrowthRate Kind = "growth-rate"
	KindAbility    Kind = "ability"
	KindMove       Kind = "move"

	KindGeneration Kind = "generation"
	KindColor      Kind = "pokemon-color"
	KindHabitat    Kind = "pokemon-habitat"
	KindShape      Kind = "pokemon-shape"

	KindSpecies Kind = "pokemon-species"
	KindPokemon Kind = "pokemon"
)

// PhaseKinds returns the kinds a phase mirrors, in processing order.
func PhaseKinds(phase entities.Phase) ([]Kind, error) {
	switch phase {
	case entities.PhaseMaster:
		return []Kind{KindType, KindStat, KindEggGroup, KindGrowthRate, KindAbility, KindMove}, nil
	case entities.PhaseReference:
		return []Kind{KindGeneration, KindColor, KindHabitat, KindShape}, nil
	case entities.PhaseSpecies:
		return []Kind{KindSpecies}, nil
	case entities.PhaseEntity, entities.PhaseRelationships:
		return []Kind{KindPokemon}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
}

// segment is the part of one kind's listing that falls inside a chunk.
type segment struct {
	Kind   Kind
	Offset int
	Limit  int
}

// chunkPlan places a chunk in the concatenated item space of a phase.
type chunkPlan struct {
	TotalItems  int
	TotalChunks int
	Segments    []segment
}

// planChunk maps chunk onto the kinds' listings. counts[i] is the upstream
// total of kinds[i]. A phase without items still has one (empty) chunk.
func planChunk(kinds []Kind, counts []int, chunk, size int) chunkPlan {
	plan := chunkPlan{}
	for _, n := range counts {
		plan.TotalItems += n
	}
	plan.TotalChunks = max(1, (plan.TotalItems+size-1)/size)

	start := chunk * size
	end := min(start+size, plan.TotalItems)

	base := 0
	for i, kind := range kinds {
		lo := max(start, base)
		hi := min(end, base+counts[i])
		if lo < hi {
			plan.Segments = append(plan.Segments, segment{Kind: kind, Offset: lo - base, Limit: hi - lo})
		}
		base += counts[i]
	}
	return plan
}
