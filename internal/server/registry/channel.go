package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	server "github.com/charadev96/gochan/internal/server/domain"
)

type JoinResult int

const (
	Joined JoinResult = iota
	AlreadyMember
	// Closed means the channel was deleted after it was resolved.
	Closed
)

// Channel is a named member set. Membership checks and changes on one
// channel are serialized by its own lock.
type Channel struct {
	id   uuid.UUID
	name string

	mu      sync.RWMutex
	members map[server.UserID]struct{}
	closed  bool
}

func newChannel(id uuid.UUID, name string, members []server.UserID) *Channel {
	ch := &Channel{
		id:      id,
		name:    name,
		members: make(map[server.UserID]struct{}, len(members)),
	}
	for _, m := range members {
		ch.members[m] = struct{}{}
	}
	return ch
}

func (c *Channel) ID() uuid.UUID {
	return c.id
}

func (c *Channel) Name() string {
	return c.name
}

// Members returns a sorted snapshot of the member set.
func (c *Channel) Members() []server.UserID {
	c.mu.RLock()
	members := make([]server.UserID, 0, len(c.members))
	for m := range c.members {
		members = append(members, m)
	}
	c.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

func (c *Channel) ContainsMember(user server.UserID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[user]
	return ok
}

func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// AddMember inserts user unless it is already present or the channel has
// been deleted.
func (c *Channel) AddMember(user server.UserID) JoinResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Closed
	}
	if _, ok := c.members[user]; ok {
		return AlreadyMember
	}
	c.members[user] = struct{}{}
	return Joined
}

func (c *Channel) RemoveMember(user server.UserID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[user]; !ok {
		return false
	}
	delete(c.members, user)
	return true
}

func (c *Channel) Info() server.ChannelInfo {
	return server.ChannelInfo{
		ID:      c.id,
		Name:    c.name,
		Members: c.Members(),
	}
}

func (c *Channel) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// ChannelRegistry resolves channel names, matched exactly, to channels.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{
		channels: make(map[string]*Channel),
	}
}

func (r *ChannelRegistry) Resolve(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

func (r *ChannelRegistry) Create(name string) (*Channel, error) {
	return r.Restore(uuid.New(), name, nil)
}

// Restore registers a channel that already has an identity, typically one
// loaded from storage.
func (r *ChannelRegistry) Restore(id uuid.UUID, name string, members []server.UserID) (*Channel, error) {
	if name == "" {
		return nil, server.ErrInvalidChannel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[name]; ok {
		return nil, fmt.Errorf("failed to create channel '%s': %w", name, server.ErrChannelExists)
	}
	ch := newChannel(id, name, members)
	r.channels[name] = ch
	return ch, nil
}

// Delete unregisters the channel and closes it, so joins that resolved it
// earlier fail with Closed.
func (r *ChannelRegistry) Delete(name string) (*Channel, bool) {
	r.mu.Lock()
	ch, ok := r.channels[name]
	if ok {
		delete(r.channels, name)
	}
	r.mu.Unlock()

	if ok {
		ch.close()
	}
	return ch, ok
}

func (r *ChannelRegistry) List() []*Channel {
	r.mu.RLock()
	channels := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.mu.RUnlock()

	sort.Slice(channels, func(i, j int) bool { return channels[i].name < channels[j].name })
	return channels
}
