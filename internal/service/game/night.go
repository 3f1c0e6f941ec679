package game

import "fmt"

type NightOutcome string

const (
	NIGHT_QUIET  NightOutcome = "Quiet"
	NIGHT_RESCUE NightOutcome = "Rescue"
	NIGHT_KILL   NightOutcome = "Kill"
)

// NightResult is produced once per night by ResolveNight.
type NightResult struct {
	DayNumber      int          `json:"day_number"`
	KilledID       string       `json:"killed_id,omitempty"`
	SavedID        string       `json:"saved_id,omitempty"`
	CheckedID      string       `json:"checked_id,omitempty"`
	CheckedIsMafia bool         `json:"checked_is_mafia"`
	Outcome        NightOutcome `json:"outcome"`
	Message        string       `json:"message"`
}

// Public is the view broadcast to every player: the sheriff check is removed,
// and the saved player is only named when the save cancelled the kill.
func (nr NightResult) Public() NightResult {
	public := nr
	public.CheckedID = ""
	public.CheckedIsMafia = false

	if nr.Outcome != NIGHT_RESCUE {
		public.SavedID = ""
	}

	return public
}

// ResolveNight combines the pending night actions into one result. It does not
// mutate the registry; the controller applies the kill in the same step.
func ResolveNight(actions map[ActionKind]string, reg *Registry, dayNumber int) NightResult {
	result := NightResult{
		DayNumber: dayNumber,
		SavedID:   actions[ACTION_DOCTOR_SAVE],
	}

	mafiaTarget := actions[ACTION_MAFIA_TARGET]

	switch {
	case mafiaTarget != "" && mafiaTarget == result.SavedID:
		result.Outcome = NIGHT_RESCUE
		result.Message = fmt.Sprintf("An assassination attempt failed: %s was saved", playerName(reg, mafiaTarget))

	case mafiaTarget != "":
		result.KilledID = mafiaTarget
		result.Outcome = NIGHT_KILL
		result.Message = fmt.Sprintf("%s was killed during the night", playerName(reg, mafiaTarget))

	default:
		result.Outcome = NIGHT_QUIET
		result.Message = "A quiet night... no one died"
	}

	if checked := actions[ACTION_SHERIFF_CHECK]; checked != "" {
		result.CheckedID = checked
		if p, ok := reg.Get(checked); ok {
			result.CheckedIsMafia = p.Role.IsMafiaAligned()
		}
	}

	return result
}

func playerName(reg *Registry, id string) string {
	if p, ok := reg.Get(id); ok {
		return p.Name
	}

	return id
}
