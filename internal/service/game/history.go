package game

import "time"

type HistoryKind string

const (
	HISTORY_NIGHT  HistoryKind = "Night"
	HISTORY_VOTE   HistoryKind = "Vote"
	HISTORY_HUNTER HistoryKind = "Hunter"
)

// HistoryEntry is one resolved result. Exactly one of the result fields is set.
type HistoryEntry struct {
	Kind      HistoryKind   `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
	Night     *NightResult  `json:"night,omitempty"`
	Vote      *VoteResult   `json:"vote,omitempty"`
	Hunter    *HunterResult `json:"hunter,omitempty"`
}

// History is append-only for the lifetime of one match.
type History struct {
	entries []HistoryEntry
}

func (h *History) RecordNight(at time.Time, r NightResult) {
	h.entries = append(h.entries, HistoryEntry{Kind: HISTORY_NIGHT, Timestamp: at, Night: &r})
}

func (h *History) RecordVote(at time.Time, r VoteResult) {
	h.entries = append(h.entries, HistoryEntry{Kind: HISTORY_VOTE, Timestamp: at, Vote: &r})
}

func (h *History) RecordHunter(at time.Time, r HunterResult) {
	h.entries = append(h.entries, HistoryEntry{Kind: HISTORY_HUNTER, Timestamp: at, Hunter: &r})
}

func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the log.
func (h *History) Entries() []HistoryEntry {
	return append([]HistoryEntry(nil), h.entries...)
}

func (h *History) Clear() {
	h.entries = nil
}

// GameStats summarises a roster for the end-of-game screen.
type GameStats struct {
	TotalPlayers  int `json:"total_players"`
	AlivePlayers  int `json:"alive_players"`
	DeadPlayers   int `json:"dead_players"`
	MafiaAlive    int `json:"mafia_alive"`
	CitizensAlive int `json:"citizens_alive"`
	HistoryLength int `json:"history_length"`
}

func ComputeStats(reg *Registry, history *History) GameStats {
	stats := GameStats{
		TotalPlayers:  reg.Len(),
		HistoryLength: history.Len(),
	}

	for _, p := range reg.Ordered() {
		if !p.Alive {
			stats.DeadPlayers++
			continue
		}

		stats.AlivePlayers++
		if p.Role.IsMafiaAligned() {
			stats.MafiaAlive++
		} else {
			stats.CitizensAlive++
		}
	}

	return stats
}
