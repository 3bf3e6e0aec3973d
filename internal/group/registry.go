// Package group implements the in-memory registry of chat groups: named
// member lists with a single owning nickname. All mutation goes through one
// registry-wide mutex so every command is all-or-nothing.
package group

import (
	"errors"
	"sort"
	"sync"

	"github.com/samber/lo"
)

var (
	ErrGroupExists    = errors.New("group already exists")
	ErrGroupNotFound  = errors.New("group not found")
	ErrNotOwner       = errors.New("you are not the owner of this group")
	ErrNotMember      = errors.New("you are not a member of this group")
	ErrAlreadyMember  = errors.New("user is already a member of this group")
	ErrInviteeOffline = errors.New("user not found")
)

// Group is one named group. Members is ordered by join time and always
// contains Owner until the owner leaves; ownership is never transferred.
type Group struct {
	Name    string
	Owner   string
	Members []string
}

// Registry owns the group-name to Group map. Safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	groups map[string]*Group
}

// NewRegistry creates an empty group registry.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*Group)}
}

// Create registers a new group with the given owner as its only member.
// Returns ErrGroupExists if the name is taken.
func (r *Registry) Create(name, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[name]; ok {
		return ErrGroupExists
	}
	r.groups[name] = &Group{Name: name, Owner: owner, Members: []string{owner}}
	return nil
}

// Invite appends invitee to the group's members. Only the owner may invite.
// The online predicate is the Session Registry liveness check; it is
// evaluated before the group lock is taken, so the two registries' locks
// are never held together. The invitee disconnecting between the check and
// the append is tolerated: the stale entry is purged by RemoveMember on
// that session's teardown.
func (r *Registry) Invite(name, inviter, invitee string, online func(string) bool) error {
	if !online(invitee) {
		return ErrInviteeOffline
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[name]
	if !ok {
		return ErrGroupNotFound
	}
	if g.Owner != inviter {
		return ErrNotOwner
	}
	if lo.Contains(g.Members, invitee) {
		return ErrAlreadyMember
	}
	g.Members = append(g.Members, invitee)
	return nil
}

// Leave removes nickname from the group's members. Any member may leave,
// the owner included; a group whose owner left keeps its absent owner and
// simply can never grow again.
func (r *Registry) Leave(name, nickname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[name]
	if !ok {
		return ErrGroupNotFound
	}
	if !lo.Contains(g.Members, nickname) {
		return ErrNotMember
	}
	g.Members = lo.Without(g.Members, nickname)
	return nil
}

// MembersOf returns a copy of the group's member list.
func (r *Registry) MembersOf(name string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[name]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return append([]string(nil), g.Members...), nil
}

// GroupsContaining returns the sorted names of every group the nickname
// belongs to. Used to build per-user update_groups pushes.
func (r *Registry) GroupsContaining(nickname string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name, g := range r.groups {
		if lo.Contains(g.Members, nickname) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RemoveMember purges nickname from every group's member list and returns
// the names of the groups it was removed from. Called on session teardown;
// groups left with zero members stay registered.
func (r *Registry) RemoveMember(nickname string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for name, g := range r.groups {
		if lo.Contains(g.Members, nickname) {
			g.Members = lo.Without(g.Members, nickname)
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed
}
