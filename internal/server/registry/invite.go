package registry

import (
	"sort"
	"sync"

	server "github.com/charadev96/gochan/internal/server/domain"
)

// InviteRegistry holds at most one pending invite per invitee. A new invite
// for the same invitee replaces the previous one.
type InviteRegistry struct {
	mu        sync.Mutex
	byInvitee map[server.UserID]server.PendingInvite
	byInviter map[server.UserID]map[server.UserID]struct{}
}

func NewInviteRegistry() *InviteRegistry {
	return &InviteRegistry{
		byInvitee: make(map[server.UserID]server.PendingInvite),
		byInviter: make(map[server.UserID]map[server.UserID]struct{}),
	}
}

// Put stores inv and returns the invite it replaced, if any.
func (r *InviteRegistry) Put(inv server.PendingInvite) (server.PendingInvite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, replaced := r.removeLocked(inv.Invitee)
	r.byInvitee[inv.Invitee] = inv
	invitees, ok := r.byInviter[inv.Inviter]
	if !ok {
		invitees = make(map[server.UserID]struct{})
		r.byInviter[inv.Inviter] = invitees
	}
	invitees[inv.Invitee] = struct{}{}
	return prev, replaced
}

func (r *InviteRegistry) Get(invitee server.UserID) (server.PendingInvite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byInvitee[invitee]
	return inv, ok
}

func (r *InviteRegistry) Contains(invitee server.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byInvitee[invitee]
	return ok
}

func (r *InviteRegistry) Remove(invitee server.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(invitee)
}

// Take removes and returns the invite for invitee in one step. Of any number
// of concurrent callers for the same invitee, only one gets the invite.
func (r *InviteRegistry) Take(invitee server.UserID) (server.PendingInvite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(invitee)
}

func (r *InviteRegistry) ListByInviter(inviter server.UserID) []server.PendingInvite {
	r.mu.Lock()
	defer r.mu.Unlock()

	invites := make([]server.PendingInvite, 0, len(r.byInviter[inviter]))
	for invitee := range r.byInviter[inviter] {
		invites = append(invites, r.byInvitee[invitee])
	}
	sortInvites(invites)
	return invites
}

func (r *InviteRegistry) List() []server.PendingInvite {
	r.mu.Lock()
	defer r.mu.Unlock()

	invites := make([]server.PendingInvite, 0, len(r.byInvitee))
	for _, inv := range r.byInvitee {
		invites = append(invites, inv)
	}
	sortInvites(invites)
	return invites
}

func (r *InviteRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byInvitee)
}

func (r *InviteRegistry) removeLocked(invitee server.UserID) (server.PendingInvite, bool) {
	inv, ok := r.byInvitee[invitee]
	if !ok {
		return inv, false
	}
	delete(r.byInvitee, invitee)
	if invitees, ok := r.byInviter[inv.Inviter]; ok {
		delete(invitees, invitee)
		if len(invitees) == 0 {
			delete(r.byInviter, inv.Inviter)
		}
	}
	return inv, true
}

func sortInvites(invites []server.PendingInvite) {
	sort.Slice(invites, func(i, j int) bool {
		return invites[i].Invitee < invites[j].Invitee
	})
}
