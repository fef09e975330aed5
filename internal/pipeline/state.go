package pipeline

import "fmt"

// State is the position of one pipeline run.
type State string

const (
	StateIdle       State = "idle"
	StateExtracting State = "extracting"
	StatePrompting  State = "prompting"
	StateGenerating State = "generating"
	StateSanitizing State = "sanitizing"
	StateParsing    State = "parsing"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Step numbers the non-terminal states for progress reporting.
func (s State) Step() int {
	switch s {
	case StateExtracting:
		return 1
	case StatePrompting:
		return 2
	case StateGenerating:
		return 3
	case StateSanitizing:
		return 4
	case StateParsing:
		return 5
	case StatePersisting:
		return 6
	case StateDone:
		return 7
	default:
		return 0
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

var allowedTransitions = map[State][]State{
	StateIdle:       {StateExtracting, StatePrompting, StateFailed},
	StateExtracting: {StatePrompting, StateFailed},
	StatePrompting:  {StateGenerating, StateFailed},
	StateGenerating: {StateSanitizing, StateFailed},
	StateSanitizing: {StateParsing, StateFailed},
	StateParsing:    {StatePersisting, StateFailed},
	StatePersisting: {StateDone, StateFailed},
}

func isAllowedTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Observer receives every transition of a run, in order.
type Observer func(from, to State)

// machine tracks one run. It is owned by a single goroutine.
type machine struct {
	state    State
	trace    []State
	observer Observer
}

func newMachine(observer Observer) *machine {
	return &machine{state: StateIdle, trace: []State{StateIdle}, observer: observer}
}

func (m *machine) advance(to State) error {
	from := m.state
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition %s -> %s", from, to)
	}
	m.state = to
	m.trace = append(m.trace, to)
	if m.observer != nil {
		m.observer(from, to)
	}
	return nil
}
