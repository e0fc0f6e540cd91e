package core

import "fmt"

// Mode selects how assembled vehicles are reconciled with the store.
type Mode string

const (
	// ModeFull inserts new ids and updates every existing one.
	ModeFull Mode = "full"
	// ModeLatest inserts new ids and skips existing ones.
	ModeLatest Mode = "latest"
	// ModeSingle reconciles one requested id as in ModeFull.
	ModeSingle Mode = "single"
)

// Action is the write decided for one vehicle.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Decision pairs a vehicle with its action.
type Decision struct {
	Vehicle Vehicle
	Action  Action
}

// Classify decides the action for each assembled vehicle against the ids
// already in the store. id is only used in ModeSingle; when it is not among
// vehicles Classify returns ErrVehicleNotFound. Decisions keep the order
// of vehicles.
//
// Full mode never compares content: an id already stored is always an
// update, even if nothing changed.
func Classify(vehicles []Vehicle, existing map[string]struct{}, mode Mode, id string) ([]Decision, error) {
	switch mode {
	case ModeFull, ModeLatest:
	case ModeSingle:
		v, ok := findVehicle(vehicles, id)
		if !ok {
			return nil, ErrVehicleNotFound
		}
		vehicles = []Vehicle{v}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	decisions := make([]Decision, len(vehicles))
	for i, v := range vehicles {
		_, stored := existing[v.ID]
		var action Action
		switch {
		case !stored:
			action = ActionInsert
		case mode == ModeLatest:
			action = ActionSkip
		default:
			action = ActionUpdate
		}
		decisions[i] = Decision{Vehicle: v, Action: action}
	}
	return decisions, nil
}

func findVehicle(vehicles []Vehicle, id string) (Vehicle, bool) {
	for _, v := range vehicles {
		if v.ID == id {
			return v, true
		}
	}
	return Vehicle{}, false
}
