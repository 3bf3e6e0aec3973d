package hub

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/relaychat/relay/internal/group"
	"github.com/relaychat/relay/internal/proto"
)

// route applies one parsed command on behalf of a registered session.
// Every rejected command yields exactly one reply frame to the sender and
// mutates nothing.
func (h *Hub) route(c *Client, cmd proto.Command) {
	switch cmd.Kind {
	case proto.KindEmpty:
		// Tolerated, never produced by a correct client.

	case proto.KindBroadcast:
		h.broadcastExcept(c.nickname, proto.FormatBroadcast(c.nickname, cmd.Text))

	case proto.KindDirect:
		h.routeDirect(c, cmd)

	case proto.KindCreateGroup:
		h.routeCreateGroup(c, cmd)

	case proto.KindInvite:
		h.routeInvite(c, cmd)

	case proto.KindLeaveGroup:
		h.routeLeaveGroup(c, cmd)

	case proto.KindGroupMessage:
		h.routeGroupMessage(c, cmd)

	case proto.KindListUsers:
		c.deliver("Connected users:\n" + strings.Join(h.Nicknames(), "\n"))

	case proto.KindHelp:
		c.deliver(proto.HelpText)

	case proto.KindUnknown, proto.KindMalformed:
		c.deliver(cmd.Hint)
	}
}

func (h *Hub) routeDirect(c *Client, cmd proto.Command) {
	recipient, ok := h.Lookup(cmd.Recipient)
	if !ok {
		c.deliver(fmt.Sprintf("User %s not found.", cmd.Recipient))
		return
	}
	recipient.deliver(proto.FormatPrivate(c.nickname, cmd.Text))
}

func (h *Hub) routeCreateGroup(c *Client, cmd proto.Command) {
	if err := h.groups.Create(cmd.Group, c.nickname); err != nil {
		h.replyGroupError(c, err, "")
		return
	}
	c.deliver(fmt.Sprintf("Group %s created.", cmd.Group))
	h.pushGroupRosters()
}

func (h *Hub) routeInvite(c *Client, cmd proto.Command) {
	if err := h.groups.Invite(cmd.Group, c.nickname, cmd.Recipient, h.Online); err != nil {
		h.replyGroupError(c, err, cmd.Recipient)
		return
	}

	if invitee, ok := h.Lookup(cmd.Recipient); ok {
		invitee.deliver(fmt.Sprintf("You have been invited to group %s.", cmd.Group))
	}
	members, err := h.groups.MembersOf(cmd.Group)
	if err == nil {
		h.multicast(members, cmd.Recipient, fmt.Sprintf("%s joined group %s!", cmd.Recipient, cmd.Group))
	}
	h.pushGroupRosters()
}

func (h *Hub) routeLeaveGroup(c *Client, cmd proto.Command) {
	if err := h.groups.Leave(cmd.Group, c.nickname); err != nil {
		h.replyGroupError(c, err, "")
		return
	}

	members, err := h.groups.MembersOf(cmd.Group)
	if err == nil {
		h.multicast(members, c.nickname, fmt.Sprintf("%s left group %s.", c.nickname, cmd.Group))
	}
	c.deliver(fmt.Sprintf("You left group %s.", cmd.Group))
	h.pushGroupRosters()
}

func (h *Hub) routeGroupMessage(c *Client, cmd proto.Command) {
	members, err := h.groups.MembersOf(cmd.Group)
	if err != nil {
		h.replyGroupError(c, err, "")
		return
	}
	if !lo.Contains(members, c.nickname) {
		h.replyGroupError(c, group.ErrNotMember, "")
		return
	}
	h.multicast(members, c.nickname, proto.FormatGroupMessage(cmd.Group, c.nickname, cmd.Text))
}

// replyGroupError translates a group registry error into the single
// human-readable reply the issuing session sees.
func (h *Hub) replyGroupError(c *Client, err error, invitee string) {
	switch {
	case errors.Is(err, group.ErrGroupExists):
		c.deliver("Group already exists.")
	case errors.Is(err, group.ErrGroupNotFound):
		c.deliver("Group not found.")
	case errors.Is(err, group.ErrNotOwner):
		c.deliver("You are not the owner of this group.")
	case errors.Is(err, group.ErrNotMember):
		c.deliver("You are not a member of this group.")
	case errors.Is(err, group.ErrAlreadyMember):
		c.deliver(fmt.Sprintf("%s is already in the group.", invitee))
	case errors.Is(err, group.ErrInviteeOffline):
		c.deliver(fmt.Sprintf("User %s not found.", invitee))
	default:
		c.deliver(err.Error())
	}
}

// pushUserRosters sends every session its view of who is online, which
// excludes the session itself.
func (h *Hub) pushUserRosters() {
	names := h.Nicknames()
	for _, c := range h.snapshot() {
		c.deliver(proto.UpdateUsers(lo.Without(names, c.nickname)))
	}
}

// pushGroupRosters sends every session the list of groups it belongs to.
// Sessions in no groups get an empty list so stale client state clears
// after a leave or a member's disconnect.
func (h *Hub) pushGroupRosters() {
	for _, c := range h.snapshot() {
		c.deliver(proto.UpdateGroups(h.groups.GroupsContaining(c.nickname)))
	}
}
