package room

import (
	"sync"
)

// DefaultLanguage is what a freshly created room starts with, matching the
// editor's initial selection.
const DefaultLanguage = "javascript"

// Room holds the shared state of one collaboration session: the ordered
// member list, the code buffer, the selected language, and a version
// counter bumped on every edit.
type Room struct {
	ID string

	mu       sync.RWMutex
	members  []member
	code     string
	language string
	version  int64
}

// member binds one session to a display name. Membership is keyed by
// session ID, not username: duplicate usernames in a room are allowed (each
// join gets its own entry, in join order).
type member struct {
	sessionID string
	username  string
}

func New(id string) *Room {
	return &Room{
		ID:       id,
		language: DefaultLanguage,
	}
}

// ApplyEdit replaces the buffer and returns the new version. Last writer
// wins: there is no merging, and identical content still bumps the version.
func (r *Room) ApplyEdit(code string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.code = code
	r.version++
	return r.version
}

// ApplyLanguage replaces the language selection. Language changes are rare
// and idempotent, so they carry no version.
func (r *Room) ApplyLanguage(language string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.language = language
}

// AddMember binds a session to the room.
func (r *Room) AddMember(sessionID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, member{sessionID: sessionID, username: username})
}

// RemoveMember unbinds a session, returning its username and how many
// members remain. Unknown sessions are a no-op.
func (r *Room) RemoveMember(sessionID string) (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.members {
		if m.sessionID == sessionID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return m.username, len(r.members)
		}
	}
	return "", len(r.members)
}

// Members returns usernames in join order. The list is derived from the
// authoritative membership on every call, never cached, so presence cannot
// drift from it.
func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, len(r.members))
	for i, m := range r.members {
		users[i] = m.username
	}
	return users
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Snapshot returns the current buffer, language and version so a late
// joiner can catch up in one step.
func (r *Room) Snapshot() (code, language string, version int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.code, r.language, r.version
}

// Registry is the table of live rooms. Rooms are created on first join and
// removed when the last member leaves; a removed ID joined again starts
// over with an empty buffer.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for id, creating it empty if it does not
// exist. Exactly one Room is created when two first joins race.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.RLock()
	r, ok := reg.rooms[id]
	reg.mu.RUnlock()
	if ok {
		return r
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r, ok := reg.rooms[id]; ok {
		return r
	}
	r = New(id)
	reg.rooms[id] = r
	return r
}

func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	return r, ok
}

func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, id)
}

func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// ActiveRooms returns member counts keyed by room ID.
func (reg *Registry) ActiveRooms() map[string]int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	counts := make(map[string]int, len(reg.rooms))
	for id, r := range reg.rooms {
		counts[id] = r.MemberCount()
	}
	return counts
}
