package rooms

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/mcaldwell/podiumquiz/go/internal/game"
	"github.com/rs/zerolog/log"
)

// codeAlphabet omits I and O, which read ambiguously on a TV screen.
const (
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength     = 4
	maxCodeRetries = 50
)

// ErrCodesExhausted means code generation kept colliding with live rooms.
// With a 4-character code space this only happens under pathological load.
var ErrCodesExhausted = errors.New("failed to generate unique room code")

// Registry is the process-wide room store. Engines depend on this interface
// rather than a package global so tests can substitute their own store.
type Registry interface {
	// Create allocates a fresh room with a unique code.
	Create(hostConnID string, maxPlayers int) (*game.Room, error)
	// Get returns the live room for a code, or nil.
	Get(code string) *game.Room
	// Delete removes a room from the store. The caller is responsible for
	// cancelling the room's timers first.
	Delete(code string)
	// Codes lists the codes of every live room.
	Codes() []string
}

// InMemory is the production Registry: a mutex-guarded map. Room contents
// are guarded by each room's own lock, not by the registry's.
type InMemory struct {
	mu    sync.RWMutex
	rooms map[string]*game.Room
}

// NewInMemory returns an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{rooms: make(map[string]*game.Room)}
}

func generateCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}

func (r *InMemory) Create(hostConnID string, maxPlayers int) (*game.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < maxCodeRetries; i++ {
		code := generateCode()
		if _, taken := r.rooms[code]; taken {
			continue
		}
		room := game.NewRoom(code, hostConnID, maxPlayers)
		r.rooms[code] = room
		log.Info().Str("room", code).Str("host_conn", hostConnID).Msg("room created")
		return room, nil
	}
	return nil, ErrCodesExhausted
}

func (r *InMemory) Get(code string) *game.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[code]
}

func (r *InMemory) Delete(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; ok {
		delete(r.rooms, code)
		log.Info().Str("room", code).Msg("room deleted")
	}
}

func (r *InMemory) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		out = append(out, code)
	}
	return out
}
