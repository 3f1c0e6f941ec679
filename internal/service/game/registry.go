package game

import (
	"strings"
)

// Registry is the roster of one session, kept in join order.
type Registry struct {
	order   []string
	players map[string]*Player
	hostID  string
}

func NewRegistry() *Registry {
	return &Registry{
		players: make(map[string]*Player),
	}
}

// Add registers a new player. The first player ever added becomes host.
func (r *Registry) Add(name string, respCh chan ResponseWrapper) (*Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newError(CodeDuplicateOrEmptyName, "player name must not be empty")
	}

	if existing := r.FindByName(name); existing != nil {
		return nil, newError(CodeDuplicateOrEmptyName, "player name already taken: "+name)
	}

	player := &Player{
		ID:        GenID(),
		Name:      name,
		Role:      ROLE_UNSET,
		Alive:     true,
		Connected: true,
		Token:     GenID(),
		RespCh:    respCh,
	}

	if r.hostID == "" {
		player.IsHost = true
		r.hostID = player.ID
	}

	r.order = append(r.order, player.ID)
	r.players[player.ID] = player

	return player, nil
}

// FindByName matches names case-insensitively.
func (r *Registry) FindByName(name string) *Player {
	name = strings.TrimSpace(name)
	for _, id := range r.order {
		if p := r.players[id]; strings.EqualFold(p.Name, name) {
			return p
		}
	}

	return nil
}

func (r *Registry) Get(id string) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

func (r *Registry) Host() *Player {
	return r.players[r.hostID]
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Ordered returns the players in join order.
func (r *Registry) Ordered() []*Player {
	players := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		players = append(players, r.players[id])
	}

	return players
}

func (r *Registry) Alive() []*Player {
	alive := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		if p := r.players[id]; p.Alive {
			alive = append(alive, p)
		}
	}

	return alive
}

func (r *Registry) CountConnected() int {
	count := 0
	for _, p := range r.players {
		if p.Connected {
			count++
		}
	}

	return count
}

// Remove deletes a player. It is only called while in the lobby; mid-game
// departures are marked disconnected instead. When the host leaves, hosting
// passes to the earliest-joined remaining player, which is returned.
func (r *Registry) Remove(id string) (newHost *Player) {
	if _, ok := r.players[id]; !ok {
		return nil
	}

	delete(r.players, id)

	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.hostID != id {
		return nil
	}

	r.hostID = ""
	if len(r.order) == 0 {
		return nil
	}

	next := r.players[r.order[0]]
	next.IsHost = true
	r.hostID = next.ID

	return next
}

// PassHost moves hosting to the earliest-joined connected player when the
// current host is disconnected. It returns the new host, or nil when hosting
// did not change.
func (r *Registry) PassHost() *Player {
	if host := r.players[r.hostID]; host != nil && host.Connected {
		return nil
	}

	for _, id := range r.order {
		next := r.players[id]
		if !next.Connected {
			continue
		}

		if host := r.players[r.hostID]; host != nil {
			host.IsHost = false
		}
		next.IsHost = true
		r.hostID = next.ID

		return next
	}

	return nil
}

// ResetRoles puts every player back into the pre-game state.
func (r *Registry) ResetRoles() {
	for _, p := range r.players {
		p.Role = ROLE_UNSET
		p.Alive = true
	}
}

// Snapshot builds the roster as seen by viewerID. Roles are hidden except the
// viewer's own, all of them for the host when hostSeesRoles is set, and all of
// them once revealAll is set at the end of a game.
func (r *Registry) Snapshot(viewerID string, revealAll, hostSeesRoles bool) []PlayerView {
	views := make([]PlayerView, 0, len(r.order))

	showAll := revealAll || (hostSeesRoles && viewerID != "" && viewerID == r.hostID)

	for _, id := range r.order {
		p := r.players[id]

		view := PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			IsHost:    p.IsHost,
			Alive:     p.Alive,
			Connected: p.Connected,
		}

		if showAll || p.ID == viewerID {
			view.Role = p.Role
		}

		views = append(views, view)
	}

	return views
}
