package registry

import (
	"sync"

	server "github.com/charadev96/gochan/internal/server/domain"
)

// DefaultChannelAssigner maps users to the channel their messages go to when
// none is named. Bindings are not checked against the channel registry and
// may point at deleted channels.
type DefaultChannelAssigner struct {
	mu       sync.RWMutex
	bindings map[server.UserID]string
}

func NewDefaultChannelAssigner() *DefaultChannelAssigner {
	return &DefaultChannelAssigner{
		bindings: make(map[server.UserID]string),
	}
}

func (a *DefaultChannelAssigner) SetDefault(user server.UserID, channel string) {
	a.mu.Lock()
	a.bindings[user] = channel
	a.mu.Unlock()
}

func (a *DefaultChannelAssigner) GetDefault(user server.UserID) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ch, ok := a.bindings[user]
	return ch, ok
}

// ClearIf removes the binding for user only while it still names channel.
func (a *DefaultChannelAssigner) ClearIf(user server.UserID, channel string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch, ok := a.bindings[user]; !ok || ch != channel {
		return false
	}
	delete(a.bindings, user)
	return true
}

func (a *DefaultChannelAssigner) Restore(bindings map[server.UserID]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for user, ch := range bindings {
		a.bindings[user] = ch
	}
}
