package game

import "math/rand"

// Avatars is the cosmetic pool players are assigned from.
var Avatars = []string{
	"cat", "goat", "panda", "koala", "monkey", "lion", "bear", "dog", "tiger",
}

// PickAvatar assigns an avatar, preferring ones no current player holds.
// Once the pool is exhausted duplicates are allowed.
func PickAvatar(r *Room) string {
	used := make(map[string]bool, len(r.Players))
	for _, p := range r.Players {
		used[p.AvatarID] = true
	}

	available := make([]string, 0, len(Avatars))
	for _, a := range Avatars {
		if !used[a] {
			available = append(available, a)
		}
	}
	pool := available
	if len(pool) == 0 {
		pool = Avatars
	}
	return pool[rand.Intn(len(pool))]
}
