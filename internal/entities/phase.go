package entities

import "fmt"

// Phase is one stage of the dependency-ordered sync sequence.
type Phase string

const (
	PhaseMaster        Phase = "master"
	PhaseReference     Phase = "reference"
	PhaseSpecies       Phase = "species"
	PhaseEntity        Phase = "entity"
	PhaseRelationships Phase = "relationships"
)

// Phases lists every phase in dependency order.
var Phases = []Phase{
	PhaseMaster,
	PhaseReference,
	PhaseSpecies,
	PhaseEntity,
	PhaseRelationships,
}

// ParsePhase validates a phase name.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

// Index returns the position of p in the dependency order, or -1.
func (p Phase) Index() int {
	for i, candidate := range Phases {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p, if any.
func (p Phase) Next() (Phase, bool) {
	i := p.Index()
	if i < 0 || i+1 >= len(Phases) {
		return "", false
	}
	return Phases[i+1], true
}

// Title is the display form used in progress messages.
func (p Phase) Title() string {
	switch p {
	case PhaseMaster:
		return "Master"
	case PhaseReference:
		return "Reference"
	case PhaseSpecies:
		return "Species"
	case PhaseEntity:
		return "Entity"
	case PhaseRelationships:
		return "Relationships"
	default:
		return string(p)
	}
}
