package hub

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/relaychat/relay/internal/proto"
)

const (
	writeTimeout = 10 * time.Second

	// rateStrikeLimit is how many over-limit frames in a row get a client
	// disconnected rather than just warned.
	rateStrikeLimit = 5
)

// Client is one connected session: the registered nickname, its WebSocket,
// and the two pump goroutines that own each direction of the socket. Until
// the handshake completes the nickname is empty and the session is not in
// the registry.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// id correlates log lines before a nickname exists.
	id       string
	nickname string

	// remoteAddr is the full peer address for logging; remoteHost is the
	// host alone, the nickname-history key. The port is ephemeral and
	// changes every reconnect, so keying history by it would never match
	// a returning user.
	remoteAddr  string
	remoteHost  string
	connectedAt time.Time

	// send is the outbound frame queue, drained by WritePump. Delivery
	// never blocks on it; a full queue tears the session down.
	send chan string

	limiter *rate.Limiter
	strikes int

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// NewClient wraps an accepted WebSocket connection. The caller starts the
// pumps with go ReadPump() and go WritePump().
func NewClient(h *Hub, conn *websocket.Conn, remoteAddr string, parent context.Context) *Client {
	ctx, cancel := context.WithCancel(parent)
	remoteHost := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteHost = host
	}
	c := &Client{
		hub:         h,
		conn:        conn,
		id:          uuid.NewString(),
		remoteAddr:  remoteAddr,
		remoteHost:  remoteHost,
		connectedAt: time.Now(),
		send:        make(chan string, h.opts.SendBuffer),
		ctx:         ctx,
		cancel:      cancel,
	}
	if h.opts.MessageRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(h.opts.MessageRate), h.opts.MessageBurst)
	}
	return c
}

// ReadPump owns the inbound side: handshake, then one parse-and-route
// iteration per frame until CLOSE, a read error, or a flood strikeout.
// It always leaves through Close.
func (c *Client) ReadPump() {
	defer c.Close()

	if !c.handshake() {
		return
	}

	for {
		frame, err := c.readFrame()
		if err != nil {
			return
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.strikes++
			if c.strikes >= rateStrikeLimit {
				slog.Warn("session flooding, disconnecting",
					"conn", c.id,
					"nickname", c.nickname,
				)
				return
			}
			c.deliver("You are sending messages too fast. Slow down.")
			continue
		}
		c.strikes = 0

		cmd := proto.Parse(frame)
		if cmd.Kind == proto.KindClose {
			return
		}
		c.hub.route(c, cmd)
	}
}

// handshake sends the nickname-history hint, reads the chosen nickname,
// and registers it. A rejected nickname gets one reply frame and the
// session never becomes active.
func (c *Client) handshake() bool {
	if err := c.writeFrame(proto.LastNicknames(c.lastNicknames())); err != nil {
		return false
	}

	nickname, err := c.readFrame()
	if err != nil {
		return false
	}
	c.nickname = nickname

	if err := c.hub.register(c); err != nil {
		_ = c.writeFrame("Nickname taken or invalid.")
		_ = c.conn.Close(websocket.StatusPolicyViolation, "nickname rejected")
		return false
	}

	c.recordHistory()
	c.hub.broadcastExcept(c.nickname, proto.JoinNotice(c.nickname))
	c.hub.pushUserRosters()
	return true
}

// lastNicknames looks up the nicknames previously registered from this
// session's remote host.
func (c *Client) lastNicknames() []string {
	if c.hub.history == nil {
		return nil
	}
	return c.hub.history.LastNicknames(c.remoteHost)
}

// recordHistory writes the registered nickname through to the history
// store, keyed by remote host.
func (c *Client) recordHistory() {
	if c.hub.history == nil {
		return
	}
	if err := c.hub.history.Record(c.nickname, c.remoteHost); err != nil {
		slog.Warn("nickname history write failed",
			"nickname", c.nickname,
			"error", err,
		)
	}
}

// WritePump drains the send queue onto the socket. A write failure tears
// the session down; remaining queued frames are discarded.
func (c *Client) WritePump() {
	for {
		select {
		case payload := <-c.send:
			if err := c.writeFrame(payload); err != nil {
				slog.Debug("write failed",
					"conn", c.id,
					"nickname", c.nickname,
					"error", err,
				)
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) readFrame() (string, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) writeFrame(payload string) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, []byte(payload))
}

// deliver queues one frame for the session without ever blocking the
// caller. A closed or saturated session reports false and, when saturated,
// triggers its own teardown so a stuck peer never stalls a fan-out.
func (c *Client) deliver(payload string) bool {
	select {
	case c.send <- payload:
		return true
	case <-c.ctx.Done():
		return false
	default:
		slog.Warn("send buffer full, dropping session",
			"conn", c.id,
			"nickname", c.nickname,
		)
		go c.Close()
		return false
	}
}

// Close tears the session down exactly once, from whichever path reaches
// it first: unregister, purge group memberships, release the socket, then
// announce the departure and push fresh rosters to the survivors.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		registered := c.hub.unregister(c)
		if registered {
			c.hub.groups.RemoveMember(c.nickname)
		}

		c.cancel()
		if c.conn != nil {
			_ = c.conn.Close(websocket.StatusNormalClosure, "session closed")
		}

		if registered {
			c.hub.broadcastExcept(c.nickname, proto.LeaveNotice(c.nickname))
			c.hub.pushUserRosters()
			c.hub.pushGroupRosters()
			slog.Info("session closed",
				"conn", c.id,
				"nickname", c.nickname,
				"connected", time.Since(c.connectedAt).Round(time.Second).String(),
			)
		}
	})
}
