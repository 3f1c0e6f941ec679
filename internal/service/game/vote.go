package game

import "fmt"

// VoteResult is produced once per voting phase by ResolveVotes.
type VoteResult struct {
	DayNumber       int            `json:"day_number"`
	EliminatedID    string         `json:"eliminated_id,omitempty"`
	IsTie           bool           `json:"is_tie"`
	VoteCounts      map[string]int `json:"vote_counts"`
	HunterTriggered bool           `json:"hunter_triggered"`
	Message         string         `json:"message"`
}

// ResolveVotes tallies votes whose voter and target are both alive. Only a
// strict maximum eliminates; a tie or an empty tally eliminates no one.
func ResolveVotes(votes map[string]string, reg *Registry, dayNumber int) VoteResult {
	counts := make(map[string]int)

	for voterID, targetID := range votes {
		voter, ok := reg.Get(voterID)
		if !ok || !voter.Alive {
			continue
		}

		target, ok := reg.Get(targetID)
		if !ok || !target.Alive {
			continue
		}

		counts[targetID]++
	}

	result := VoteResult{
		DayNumber:  dayNumber,
		VoteCounts: counts,
	}

	maxVotes := 0
	var leaders []string
	for targetID, count := range counts {
		if count > maxVotes {
			maxVotes = count
			leaders = []string{targetID}
		} else if count == maxVotes {
			leaders = append(leaders, targetID)
		}
	}

	switch {
	case len(leaders) == 0:
		result.Message = "No one voted, no one was eliminated"

	case len(leaders) > 1:
		result.IsTie = true
		result.Message = "The vote is tied, no one was eliminated"

	default:
		eliminated, _ := reg.Get(leaders[0])
		result.EliminatedID = eliminated.ID
		result.HunterTriggered = eliminated.Role == ROLE_HUNTER
		result.Message = fmt.Sprintf("%s was eliminated by the town", eliminated.Name)
	}

	return result
}
