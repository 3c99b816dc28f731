package game

import "fmt"

// Phase is a room's stage in its lifecycle.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseBetting
	PhaseRoundEnd
	PhaseGameEnd
)

// String returns the wire name of the phase
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseBetting:
		return "betting"
	case PhaseRoundEnd:
		return "roundEnd"
	case PhaseGameEnd:
		return "gameEnd"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid phase %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase parses a wire phase name.
func ParsePhase(s string) (Phase, error) {
	for _, p := range []Phase{PhaseWaiting, PhaseBetting, PhaseRoundEnd, PhaseGameEnd} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// Valid reports whether p is one of the four defined phases.
func (p Phase) Valid() bool {
	return p >= PhaseWaiting && p <= PhaseGameEnd
}

// CanTransitionTo reports whether next is reachable from p in one step.
//
//	waiting -> betting -> roundEnd -> betting ...
//	                      roundEnd -> gameEnd
//
// Destruction is not a phase; a room can be closed from anywhere.
func (p Phase) CanTransitionTo(next Phase) bool {
	switch p {
	case PhaseWaiting:
		return next == PhaseBetting
	case PhaseBetting:
		return next == PhaseRoundEnd
	case PhaseRoundEnd:
		return next == PhaseBetting || next == PhaseGameEnd
	default:
		return false
	}
}
