package game

// WinOutcome is the verdict of EvaluateWin.
type WinOutcome struct {
	Winner Winner `json:"winner"`
	Reason string `json:"reason"`
}

func (w WinOutcome) Decided() bool {
	return w.Winner != WINNER_NONE
}

// EvaluateWin partitions the living players by faction. It must be re-run after
// every change to alive state.
func EvaluateWin(reg *Registry) WinOutcome {
	mafia, citizens := 0, 0
	for _, p := range reg.Alive() {
		if p.Role.IsMafiaAligned() {
			mafia++
		} else {
			citizens++
		}
	}

	switch {
	case mafia == 0:
		return WinOutcome{
			Winner: WINNER_CITIZENS,
			Reason: "All mafia members have been eliminated",
		}
	case mafia >= citizens:
		return WinOutcome{
			Winner: WINNER_MAFIA,
			Reason: "The mafia equal or outnumber the citizens",
		}
	default:
		return WinOutcome{Winner: WINNER_NONE}
	}
}
