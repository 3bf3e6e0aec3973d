package group_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/relaychat/relay/internal/group"
)

func online(string) bool { return true }

func TestCreate_DuplicateFails(t *testing.T) {
	r := group.NewRegistry()
	if err := r.Create("team", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create("team", "bob"); !errors.Is(err, group.ErrGroupExists) {
		t.Fatalf("expected ErrGroupExists, got %v", err)
	}
}

func TestCreate_OwnerIsSoleMember(t *testing.T) {
	r := group.NewRegistry()
	if err := r.Create("team", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	members, err := r.MembersOf("team")
	if err != nil {
		t.Fatalf("MembersOf: %v", err)
	}
	if len(members) != 1 || members[0] != "alice" {
		t.Errorf("members = %v, want [alice]", members)
	}
}

func TestInvite_AppendsExactlyOnce(t *testing.T) {
	r := group.NewRegistry()
	if err := r.Create("team", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Invite("team", "alice", "bob", online); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	members, _ := r.MembersOf("team")
	if len(members) != 2 || members[0] != "alice" || members[1] != "bob" {
		t.Errorf("members = %v, want [alice bob]", members)
	}
	if err := r.Invite("team", "alice", "bob", online); !errors.Is(err, group.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestInvite_Failures(t *testing.T) {
	r := group.NewRegistry()
	if err := r.Create("team", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := r.Invite("nope", "alice", "bob", online); !errors.Is(err, group.ErrGroupNotFound) {
		t.Errorf("missing group: got %v", err)
	}
	if err := r.Invite("team", "bob", "carol", online); !errors.Is(err, group.ErrNotOwner) {
		t.Errorf("non-owner invite: got %v", err)
	}
	offline := func(string) bool { return false }
	if err := r.Invite("team", "alice", "ghost", offline); !errors.Is(err, group.ErrInviteeOffline) {
		t.Errorf("offline invitee: got %v", err)
	}
	if members, _ := r.MembersOf("team"); len(members) != 1 {
		t.Errorf("failed invites must not mutate, members = %v", members)
	}
}

func TestLeave_RemovesExactlyThatMember(t *testing.T) {
	r := group.NewRegistry()
	if err := r.Create("team", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Invite("team", "alice", "bob", online); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	if err := r.Leave("team", "bob"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	members, _ := r.MembersOf("team")
	if len(members) != 1 || members[0] != "alice" {
		t.Errorf("members = %v, want [alice]", members)
	}

	if err := r.Leave("team", "bob"); !errors.Is(err, group.ErrNotMember) {
		t.Fatalf("second leave: expected ErrNotMember, got %v", err)
	}
	if err := r.Leave("nope", "alice"); !errors.Is(err, group.ErrGroupNotFound) {
		t.Fatalf("missing group: expected ErrGroupNotFound, got %v", err)
	}
}

func TestLeave_OwnerMayLeave(t *testing.T) {
	r := group.NewRegistry()
	if err := r.Create("team", "alice"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Leave("team", "alice"); err != nil {
		t.Fatalf("owner leave: %v", err)
	}
	// The empty group stays addressable.
	members, err := r.MembersOf("team")
	if err != nil {
		t.Fatalf("MembersOf after owner left: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("members = %v, want empty", members)
	}
}

func TestGroupsContaining(t *testing.T) {
	r := group.NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Create(name, "alice"); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	if err := r.Invite("mid", "alice", "bob", online); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	got := r.GroupsContaining("alice")
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("GroupsContaining(alice) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GroupsContaining(alice) = %v, want sorted %v", got, want)
		}
	}
	if got := r.GroupsContaining("bob"); len(got) != 1 || got[0] != "mid" {
		t.Errorf("GroupsContaining(bob) = %v, want [mid]", got)
	}
	if got := r.GroupsContaining("ghost"); len(got) != 0 {
		t.Errorf("GroupsContaining(ghost) = %v, want empty", got)
	}
}

func TestRemoveMember_PurgesEverywhere(t *testing.T) {
	r := group.NewRegistry()
	for _, name := range []string{"a", "b"} {
		if err := r.Create(name, "alice"); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		if err := r.Invite(name, "alice", "bob", online); err != nil {
			t.Fatalf("Invite into %s: %v", name, err)
		}
	}

	removed := r.RemoveMember("bob")
	if len(removed) != 2 || removed[0] != "a" || removed[1] != "b" {
		t.Fatalf("removed = %v, want [a b]", removed)
	}
	for _, name := range []string{"a", "b"} {
		members, _ := r.MembersOf(name)
		if len(members) != 1 || members[0] != "alice" {
			t.Errorf("members of %s = %v, want [alice]", name, members)
		}
	}
	if removed := r.RemoveMember("bob"); len(removed) != 0 {
		t.Errorf("second RemoveMember = %v, want empty", removed)
	}
}

func TestRegistry_ConcurrentMutation(t *testing.T) {
	r := group.NewRegistry()
	if err := r.Create("team", "owner"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nick := fmt.Sprintf("user%d", i)
			if err := r.Invite("team", "owner", nick, online); err != nil {
				t.Errorf("Invite %s: %v", nick, err)
			}
			r.GroupsContaining(nick)
			if err := r.Leave("team", nick); err != nil {
				t.Errorf("Leave %s: %v", nick, err)
			}
		}(i)
	}
	wg.Wait()

	members, _ := r.MembersOf("team")
	if len(members) != 1 || members[0] != "owner" {
		t.Errorf("members = %v, want [owner]", members)
	}
}
