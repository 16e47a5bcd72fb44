package state

import (
	"sort"

	"presence-room/internal/world"
)

// Roster maps stable player ids to their state. It is owned by one session
// and is not safe for concurrent use.
type Roster struct {
	selfID  string
	spawn   world.Vec3
	players map[string]*PlayerState
}

// NewRoster creates a roster holding only the local player.
func NewRoster(selfID string, selfMeta Meta, spawn world.Vec3) *Roster {
	r := &Roster{
		selfID:  selfID,
		spawn:   spawn,
		players: make(map[string]*PlayerState),
	}
	r.players[selfID] = r.newPlayer(selfID, selfMeta)
	return r
}

func (r *Roster) newPlayer(id string, meta Meta) *PlayerState {
	return &PlayerState{
		ID:       id,
		Position: r.spawn,
		Color:    ColorFor(id),
		Name:     NameFor(id, meta),
		Meta:     meta,
	}
}

// SelfID returns the local player's id.
func (r *Roster) SelfID() string {
	return r.selfID
}

// Self returns the local player.
func (r *Roster) Self() *PlayerState {
	return r.players[r.selfID]
}

// Join adds a player at the spawn point. A repeated join returns the existing
// entry untouched and reports false.
func (r *Roster) Join(id string, meta Meta) (*PlayerState, bool) {
	if id == "" {
		return nil, false
	}
	if existing, ok := r.players[id]; ok {
		return existing, false
	}
	player := r.newPlayer(id, meta)
	r.players[id] = player
	return player, true
}

// Leave removes a remote player. The local player cannot leave its own
// roster.
func (r *Roster) Leave(id string) bool {
	if id == r.selfID {
		return false
	}
	if _, ok := r.players[id]; !ok {
		return false
	}
	delete(r.players, id)
	return true
}

// Get looks up a player.
func (r *Roster) Get(id string) (*PlayerState, bool) {
	player, ok := r.players[id]
	return player, ok
}

// Len returns the number of players including the local one.
func (r *Roster) Len() int {
	return len(r.players)
}

// IDs returns all player ids in sorted order.
func (r *Roster) IDs() []string {
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Each visits players in id order.
func (r *Roster) Each(fn func(*PlayerState)) {
	for _, id := range r.IDs() {
		fn(r.players[id])
	}
}

// Remotes returns every player except the local one, in id order.
func (r *Roster) Remotes() []*PlayerState {
	remotes := make([]*PlayerState, 0, len(r.players))
	for _, id := range r.IDs() {
		if id == r.selfID {
			continue
		}
		remotes = append(remotes, r.players[id])
	}
	return remotes
}
