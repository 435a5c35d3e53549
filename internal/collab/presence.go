package collab

import (
	"slices"
	"sync"
	"time"
)

// PresenceManager tracks the cursor and selection of every connected client
// of a room. Selections only hold layers that are live in the session.
type PresenceManager struct {
	mu      sync.RWMutex
	clients map[string]PresencePayload // clientID -> presence
	now     func() time.Time
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		clients: make(map[string]PresencePayload),
		now:     time.Now,
	}
}

// Update stores p for clientID with its selection narrowed by live and
// returns the stored value.
func (pm *PresenceManager) Update(clientID string, p PresencePayload, live func([]string) []string) PresencePayload {
	p.Selection = live(p.Selection)
	p.UpdatedAt = pm.now()

	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.clients[clientID] = p
	return p
}

func (pm *PresenceManager) Remove(clientID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.clients, clientID)
}

// Prune drops layers that are no longer live from every selection. It
// reports whether any selection changed.
func (pm *PresenceManager) Prune(live func([]string) []string) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	changed := false
	for id, p := range pm.clients {
		kept := live(p.Selection)
		if slices.Equal(kept, p.Selection) {
			continue
		}
		p.Selection = kept
		pm.clients[id] = p
		changed = true
	}
	return changed
}

func (pm *PresenceManager) GetAll() map[string]PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make(map[string]PresencePayload, len(pm.clients))
	for id, p := range pm.clients {
		p.Selection = slices.Clone(p.Selection)
		out[id] = p
	}
	return out
}

// StateMessage returns nil when nobody has reported presence yet.
func (pm *PresenceManager) StateMessage() *Message {
	all := pm.GetAll()
	if len(all) == 0 {
		return nil
	}
	payload, err := json.Marshal(PresenceStatePayload{Presences: all})
	if err != nil {
		return nil
	}
	return &Message{Type: TypePresenceState, Payload: payload}
}
