package game

import (
	"fmt"
	"math/rand/v2"
)

const MIN_PLAYERS = 4

// ValidateSettings checks the role configuration against the number of
// players and returns every failing reason at once.
func ValidateSettings(settings Settings, playerCount int) error {
	reasons := make([]string, 0)

	if playerCount < MIN_PLAYERS {
		reasons = append(reasons, fmt.Sprintf("at least %d players are required, got %d", MIN_PLAYERS, playerCount))
	}

	if settings.MafiaCount < 1 {
		reasons = append(reasons, "there must be at least one mafia member")
	}

	maxMafia := playerCount / 3
	if settings.MafiaCount > maxMafia {
		reasons = append(reasons, fmt.Sprintf("mafia count cannot exceed %d for %d players", maxMafia, playerCount))
	}

	if required := requiredRoleCount(settings); required > playerCount {
		reasons = append(reasons, fmt.Sprintf("%d special roles do not fit %d players", required, playerCount))
	}

	if len(reasons) > 0 {
		return &Error{
			Code:    CodeInvalidSetting,
			Message: "invalid game settings",
			Reasons: reasons,
		}
	}

	return nil
}

// requiredRoleCount is the leader, the extra mafia, the sheriff and the optional roles.
func requiredRoleCount(settings Settings) int {
	count := 1 + max(settings.MafiaCount-1, 0) + 1
	if settings.HasDoctor {
		count++
	}
	if settings.HasHunter {
		count++
	}

	return count
}

// BuildRoleDeck returns the exact role multiset for the settings, padded with
// citizens up to playerCount. The order is fixed; shuffle it before dealing.
func BuildRoleDeck(settings Settings, playerCount int) []Role {
	deck := make([]Role, 0, playerCount)

	deck = append(deck, ROLE_MAFIA_LEADER)
	for i := 1; i < settings.MafiaCount; i++ {
		deck = append(deck, ROLE_MAFIA)
	}

	deck = append(deck, ROLE_SHERIFF)

	if settings.HasDoctor {
		deck = append(deck, ROLE_DOCTOR)
	}
	if settings.HasHunter {
		deck = append(deck, ROLE_HUNTER)
	}

	for len(deck) < playerCount {
		deck = append(deck, ROLE_CITIZEN)
	}

	return deck
}

// Shuffle is an in-place Fisher–Yates shuffle; every permutation is equally likely.
func Shuffle[T any](rng *rand.Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// AssignRoles validates the settings, deals a shuffled deck to players in the
// given order and revives everyone. It returns the assignment by player id.
func AssignRoles(rng *rand.Rand, players []*Player, settings Settings) (map[string]Role, error) {
	if err := ValidateSettings(settings, len(players)); err != nil {
		return nil, err
	}

	deck := BuildRoleDeck(settings, len(players))
	Shuffle(rng, deck)

	assignments := make(map[string]Role, len(players))
	for i, p := range players {
		p.Role = deck[i]
		p.Alive = true
		assignments[p.ID] = deck[i]
	}

	checkRoleInvariants(players, settings)

	return assignments, nil
}

func checkRoleInvariants(players []*Player, settings Settings) {
	leaders, mafia := 0, 0
	for _, p := range players {
		if p.Role == ROLE_MAFIA_LEADER {
			leaders++
		}
		if p.Role.IsMafiaAligned() {
			mafia++
		}
	}

	mustHold(leaders == 1, "expected exactly one mafia leader, got %d", leaders)
	mustHold(mafia == settings.MafiaCount, "expected %d mafia, got %d", settings.MafiaCount, mafia)
}
