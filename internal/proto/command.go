// Package proto defines the text protocol spoken between chat clients and
// the relay: parsing of inbound command frames and formatting of outbound
// payloads and notifications. One frame is one WebSocket text message.
package proto

import (
	"fmt"
	"strings"
)

// Kind identifies the parsed shape of an inbound frame.
type Kind int

const (
	// KindEmpty is produced for a zero-length frame. Correct clients never
	// send one; the router treats it as a no-op.
	KindEmpty Kind = iota
	KindBroadcast
	KindDirect
	KindCreateGroup
	KindInvite
	KindLeaveGroup
	KindGroupMessage
	KindListUsers
	KindHelp
	KindClose
	KindUnknown
	KindMalformed
)

// Command is one parsed inbound frame. Which fields are set depends on Kind:
// Group and Recipient name a group or user, Text carries a message payload
// (with its internal spaces intact), and Hint carries the usage or error
// text for KindMalformed and KindUnknown.
type Command struct {
	Kind      Kind
	Recipient string
	Group     string
	Text      string
	Hint      string
}

// CloseSentinel is the frame a client sends to end its session.
const CloseSentinel = "CLOSE"

// HelpText is the reply to /help.
const HelpText = "Available commands:\n" +
	"/help - List available commands.\n" +
	"/users - List connected users.\n" +
	"/create_group <group_name> - Create a new group.\n" +
	"/invite <group_name> <user_name> - Invite a user to a group.\n" +
	"/leave_group <group_name> - Leave a group.\n" +
	"/group_msg <group_name> <message> - Send a message to a group.\n" +
	"/p <user_name> <message> - Send a private message."

// Parse turns one raw frame into a Command. It never fails: frames that do
// not match the grammar come back as KindMalformed or KindUnknown with a
// human-readable Hint. Group and user names never contain spaces; trailing
// message payloads keep theirs, so each command splits with its own
// maximum token count.
func Parse(frame string) Command {
	frame = strings.TrimRight(frame, "\r\n")
	if frame == "" {
		return Command{Kind: KindEmpty}
	}
	if frame == CloseSentinel {
		return Command{Kind: KindClose}
	}
	if !strings.HasPrefix(frame, "/") {
		return Command{Kind: KindBroadcast, Text: frame}
	}

	parts := strings.SplitN(frame, " ", 2)
	switch parts[0] {
	case "/help":
		return Command{Kind: KindHelp}

	case "/users":
		return Command{Kind: KindListUsers}

	case "/p":
		parts = strings.SplitN(frame, " ", 3)
		if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
			return malformed("Usage: /p <user_name> <message>")
		}
		return Command{Kind: KindDirect, Recipient: parts[1], Text: parts[2]}

	case "/create_group":
		// Names never contain spaces; anything after the first token is
		// ignored, as the original protocol did.
		parts = strings.SplitN(frame, " ", 3)
		if len(parts) < 2 || parts[1] == "" {
			return malformed("Usage: /create_group <group_name>")
		}
		return Command{Kind: KindCreateGroup, Group: parts[1]}

	case "/invite":
		parts = strings.SplitN(frame, " ", 3)
		if len(parts) < 3 || parts[1] == "" || parts[2] == "" || strings.Contains(parts[2], " ") {
			return malformed("Usage: /invite <group_name> <user_name>")
		}
		return Command{Kind: KindInvite, Group: parts[1], Recipient: parts[2]}

	case "/leave_group":
		parts = strings.SplitN(frame, " ", 3)
		if len(parts) < 2 || parts[1] == "" {
			return malformed("Usage: /leave_group <group_name>")
		}
		return Command{Kind: KindLeaveGroup, Group: parts[1]}

	case "/group_msg":
		parts = strings.SplitN(frame, " ", 3)
		if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
			return malformed("Usage: /group_msg <group_name> <message>")
		}
		return Command{Kind: KindGroupMessage, Group: parts[1], Text: parts[2]}
	}

	return Command{Kind: KindUnknown, Hint: fmt.Sprintf("Unknown command: %s. Type /help for the command list.", frame)}
}

func malformed(usage string) Command {
	return Command{Kind: KindMalformed, Hint: usage}
}

// Outbound payload formats. Every string a client can receive is built
// here so the wire format lives in one place.

// FormatBroadcast renders a room-wide chat message.
func FormatBroadcast(sender, text string) string {
	return fmt.Sprintf("[%s] %s", sender, text)
}

// FormatPrivate renders a direct message as seen by its recipient.
func FormatPrivate(sender, text string) string {
	return fmt.Sprintf("[private from %s]: %s", sender, text)
}

// FormatGroupMessage renders a group message as seen by the other members.
func FormatGroupMessage(group, sender, text string) string {
	return fmt.Sprintf("[group %s | %s]: %s", group, sender, text)
}

// JoinNotice announces a new session to everyone else.
func JoinNotice(nickname string) string {
	return fmt.Sprintf("--- %s joined the chat ---", nickname)
}

// LeaveNotice announces a departed session to everyone else.
func LeaveNotice(nickname string) string {
	return fmt.Sprintf("--- %s left the chat ---", nickname)
}

// UpdateUsers is the roster push listing the users visible to one client.
func UpdateUsers(nicknames []string) string {
	return "update_users " + strings.Join(nicknames, ",")
}

// UpdateGroups is the roster push listing one client's groups.
func UpdateGroups(groups []string) string {
	return "update_groups " + strings.Join(groups, ",")
}

// LastNicknames is the handshake hint listing nicknames previously seen
// from the connecting address. The list may be empty.
func LastNicknames(nicknames []string) string {
	return "last_nicknames: " + strings.Join(nicknames, ",")
}
