package establishment

import (
	"encoding/json"
	"fmt"
)

// State is where a professional's resolver stands. AwaitingSelection and
// Resolved are the two sub-states of holding several active affiliations.
type State int

const (
	StateUninitialized State = iota
	StateNoEstablishment
	StateSingleEstablishment
	StateAwaitingSelection
	StateResolved
	StateError
)

var stateNames = map[State]string{
	StateUninitialized:       "uninitialized",
	StateNoEstablishment:     "no_establishment",
	StateSingleEstablishment: "single_establishment",
	StateAwaitingSelection:   "awaiting_selection",
	StateResolved:            "resolved",
	StateError:               "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st, n := range stateNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", name)
}
