package game

import "fmt"

// HunterResult describes the revenge shot of an eliminated hunter.
type HunterResult struct {
	DayNumber  int    `json:"day_number"`
	HunterID   string `json:"hunter_id"`
	HunterName string `json:"hunter_name"`
	TargetID   string `json:"target_id,omitempty"`
	TargetName string `json:"target_name,omitempty"`
	Skipped    bool   `json:"skipped"`
	Message    string `json:"message"`
}

// ResolveHunter validates a revenge choice. pendingID is the hunter whose
// elimination opened the window, or empty when no window is open. The caller
// applies the kill and clears pendingID.
func ResolveHunter(pendingID, hunterID, targetID string, reg *Registry, dayNumber int) (HunterResult, error) {
	if pendingID == "" || pendingID != hunterID {
		return HunterResult{}, newError(CodeInvalidHunterAction, "no revenge is pending for this player")
	}

	hunter, ok := reg.Get(hunterID)
	if !ok || hunter.Alive || hunter.Role != ROLE_HUNTER {
		return HunterResult{}, newError(CodeInvalidHunterAction, "only an eliminated hunter can take revenge")
	}

	target, ok := reg.Get(targetID)
	if !ok || !target.Alive || target.ID == hunter.ID {
		return HunterResult{}, newError(CodeInvalidHunterAction, "revenge target must be a living player")
	}

	return HunterResult{
		DayNumber:  dayNumber,
		HunterID:   hunter.ID,
		HunterName: hunter.Name,
		TargetID:   target.ID,
		TargetName: target.Name,
		Message:    fmt.Sprintf("%s (the Hunter) took %s down with them", hunter.Name, target.Name),
	}, nil
}

// SkippedHunter is the result recorded when the revenge window times out.
func SkippedHunter(hunter *Player, dayNumber int) HunterResult {
	return HunterResult{
		DayNumber:  dayNumber,
		HunterID:   hunter.ID,
		HunterName: hunter.Name,
		Skipped:    true,
		Message:    fmt.Sprintf("%s (the Hunter) did not take revenge", hunter.Name),
	}
}
