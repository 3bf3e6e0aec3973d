// Package hub implements the relay core: the session registry mapping
// nicknames to live WebSocket connections, the per-connection handler, and
// the router that fans commands out to the right sockets.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/relaychat/relay/internal/group"
	"github.com/relaychat/relay/internal/store"
)

// ErrNicknameTaken is returned by registration when the nickname is empty,
// whitespace-only, or already bound to a live session.
var ErrNicknameTaken = errors.New("nickname taken or invalid")

// Options tunes per-connection behavior.
type Options struct {
	// SendBuffer is the outbound queue depth per client. A client whose
	// buffer overflows is considered dead and torn down.
	SendBuffer int

	// MessageRate and MessageBurst bound how fast one client may send
	// frames. Zero MessageRate disables limiting.
	MessageRate  float64
	MessageBurst int
}

func (o *Options) applyDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 20
	}
}

// Hub maintains the set of active sessions and routes messages between
// them. The sessions map is the nickname registry: registration is an
// atomic check-and-insert under mu, so at most one session per nickname
// exists at any instant.
type Hub struct {
	groups  *group.Registry
	history *store.History // may be nil; history is then skipped
	opts    Options

	// mu protects sessions. It is held only for in-memory map work,
	// never across I/O.
	mu       sync.RWMutex
	sessions map[string]*Client
}

// NewHub creates a Hub routing against the given group registry and
// recording nickname history in the given store.
func NewHub(groups *group.Registry, history *store.History, opts Options) *Hub {
	opts.applyDefaults()
	return &Hub{
		groups:   groups,
		history:  history,
		opts:     opts,
		sessions: make(map[string]*Client),
	}
}

// Run blocks until the context is cancelled, then tears down every live
// session. Run should be called in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	for _, c := range h.snapshot() {
		c.Close()
	}
	slog.Info("hub stopped")
}

// register atomically binds the client's nickname. The nickname is trimmed
// first; empty and duplicate nicknames fail with ErrNicknameTaken.
func (h *Hub) register(c *Client) error {
	nickname := strings.TrimSpace(c.nickname)
	if nickname == "" {
		return ErrNicknameTaken
	}

	h.mu.Lock()
	if _, ok := h.sessions[nickname]; ok {
		h.mu.Unlock()
		return ErrNicknameTaken
	}
	c.nickname = nickname
	h.sessions[nickname] = c
	h.mu.Unlock()

	slog.Info("session registered",
		"conn", c.id,
		"nickname", nickname,
		"remote", c.remoteAddr,
		"sessions", h.SessionCount(),
	)
	return nil
}

// unregister removes the client from the registry. Idempotent; reports
// whether this call actually removed a registered session.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	cur, ok := h.sessions[c.nickname]
	removed := ok && cur == c
	if removed {
		delete(h.sessions, c.nickname)
	}
	h.mu.Unlock()

	if removed {
		slog.Info("session unregistered",
			"conn", c.id,
			"nickname", c.nickname,
			"sessions", h.SessionCount(),
		)
	}
	return removed
}

// Lookup returns the session registered under nickname, if any.
// It is safe for concurrent use.
func (h *Hub) Lookup(nickname string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.sessions[nickname]
	return c, ok
}

// Online reports whether a session exists for nickname. Passed into the
// group registry's invite check.
func (h *Hub) Online(nickname string) bool {
	_, ok := h.Lookup(nickname)
	return ok
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Nicknames returns a sorted snapshot of every registered nickname.
func (h *Hub) Nicknames() []string {
	h.mu.RLock()
	names := lo.Keys(h.sessions)
	h.mu.RUnlock()
	sort.Strings(names)
	return names
}

// snapshot copies the live session set so fan-out never holds mu across
// delivery.
func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Values(h.sessions)
}

// broadcastExcept delivers payload to every session except the named one.
// Delivery is best-effort per target: one dead recipient never aborts the
// rest of the fan-out.
func (h *Hub) broadcastExcept(except, payload string) {
	for _, c := range h.snapshot() {
		if c.nickname != except {
			c.deliver(payload)
		}
	}
}

// multicast delivers payload to the named members, skipping the sender and
// anyone without a live session.
func (h *Hub) multicast(members []string, except, payload string) {
	for _, nickname := range members {
		if nickname == except {
			continue
		}
		if c, ok := h.Lookup(nickname); ok {
			c.deliver(payload)
		}
	}
}
