// Package matrix connects the conversation actors to a Matrix homeserver.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// DefaultMaxMessageLength bounds outgoing message bodies, in runes.
const DefaultMaxMessageLength = 4000

// Config holds Matrix client configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Names are matched case-insensitively against message bodies to decide
	// whether the agent was addressed.
	Names []string
	// MaxMessageLength truncates outgoing messages. Zero means
	// DefaultMaxMessageLength.
	MaxMessageLength int
	// TypingTimeout is how long the homeserver shows the indicator unless it
	// is refreshed or cleared.
	TypingTimeout time.Duration
	// DB persists the sync token across restarts. When nil the in-memory
	// store is used and, on start, events older than the process are ignored.
	DB     *sql.DB
	Logger *slog.Logger
}

// MessageHandler receives every text message written by someone else.
type MessageHandler func(ctx context.Context, in Inbound)

// Client wraps the mautrix client.
type Client struct {
	client    *mautrix.Client
	config    *Config
	logger    *slog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	startedAt time.Time
	// replayCutoff drops events older than it; zero keeps everything.
	replayCutoff time.Time

	mu      sync.Mutex
	members map[id.RoomID]int
}

// New creates a Matrix client but does not start syncing.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}
	if config.MaxMessageLength <= 0 {
		config.MaxMessageLength = DefaultMaxMessageLength
	}
	if config.TypingTimeout <= 0 {
		config.TypingTimeout = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		client:  client,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
		members: make(map[id.RoomID]int),
	}
	if config.DB != nil {
		client.Store = newDBSyncStore(config.DB)
		logger.Info("matrix: using persistent sync store")
	} else {
		logger.Warn("matrix: no DB configured, sync position is not persisted")
	}
	return c, nil
}

// Start registers the event handlers and begins syncing in the background.
// The sync loop reconnects with exponential back-off until Stop is called.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.startedAt = time.Now()
	if err := c.setReplayCutoff(ctx); err != nil {
		return err
	}

	syncer, ok := c.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return errors.New("matrix: unexpected syncer type")
	}
	syncer.OnEventType(event.EventMessage, func(_ context.Context, evt *event.Event) {
		c.handleMessage(ctx, evt, handler)
	})
	syncer.OnEventType(event.StateMember, func(_ context.Context, evt *event.Event) {
		c.handleMember(ctx, evt)
	})

	go c.syncLoop()
	return nil
}

func (c *Client) setReplayCutoff(ctx context.Context) error {
	if c.config.DB == nil {
		c.replayCutoff = c.startedAt
		return nil
	}
	token, err := c.client.Store.LoadNextBatch(ctx, id.UserID(c.config.UserID))
	if err != nil {
		return fmt.Errorf("matrix: load sync position: %w", err)
	}
	if token == "" {
		c.replayCutoff = c.startedAt
	}
	return nil
}

func (c *Client) syncLoop() {
	const (
		backoffMin = 2 * time.Second
		backoffMax = 5 * time.Minute
	)
	backoff := backoffMin
	for {
		err := c.client.Sync()
		select {
		case <-c.stopCh:
			return
		default:
		}
		if err == nil {
			return
		}
		c.logger.Error("matrix: sync stopped; reconnecting", "err", err, "backoff", backoff)
		select {
		case <-c.stopCh:
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffMax)
	}
}

// Stop halts the sync loop. Safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.client.StopSync()
	})
}

// Send posts text to roomID, truncated to MaxMessageLength.
func (c *Client) Send(ctx context.Context, roomID, text string) error {
	if _, err := c.client.SendText(ctx, id.RoomID(roomID), truncate(text, c.config.MaxMessageLength)); err != nil {
		return fmt.Errorf("matrix: send message: %w", err)
	}
	return nil
}

// SetTyping shows or clears the typing indicator in roomID.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool) error {
	if _, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, c.config.TypingTimeout); err != nil {
		return fmt.Errorf("matrix: set typing: %w", err)
	}
	return nil
}

// UserID returns the agent's Matrix user ID.
func (c *Client) UserID() string { return c.config.UserID }

func (c *Client) handleMessage(ctx context.Context, evt *event.Event, handler MessageHandler) {
	if !c.replayCutoff.IsZero() && time.UnixMilli(evt.Timestamp).Before(c.replayCutoff) {
		return
	}
	members := c.memberCount(ctx, evt.RoomID)
	in, ok := classify(evt, id.UserID(c.config.UserID), c.config.Names, members)
	if !ok {
		return
	}
	handler(ctx, in)
}

// handleMember joins rooms the agent is invited to and drops cached member
// counts when membership changes.
func (c *Client) handleMember(ctx context.Context, evt *event.Event) {
	c.mu.Lock()
	delete(c.members, evt.RoomID)
	c.mu.Unlock()

	if evt.GetStateKey() != c.config.UserID {
		return
	}
	member := evt.Content.AsMember()
	if member.Membership != event.MembershipInvite {
		return
	}
	if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		if errors.Is(err, mautrix.MForbidden) {
			c.logger.Warn("matrix: cannot join room", "room", evt.RoomID, "err", err)
			return
		}
		c.logger.Error("matrix: join after invite failed", "room", evt.RoomID, "err", err)
		return
	}
	c.logger.Info("matrix: joined room", "room", evt.RoomID, "invited_by", evt.Sender)
}

// memberCount returns the cached joined member count of roomID, asking the
// homeserver on a miss. Zero means unknown.
func (c *Client) memberCount(ctx context.Context, roomID id.RoomID) int {
	c.mu.Lock()
	n, ok := c.members[roomID]
	c.mu.Unlock()
	if ok {
		return n
	}

	resp, err := c.client.JoinedMembers(ctx, roomID)
	if err != nil {
		c.logger.Warn("matrix: joined members lookup failed", "room", roomID, "err", err)
		return 0
	}
	n = len(resp.Joined)
	c.mu.Lock()
	c.members[roomID] = n
	c.mu.Unlock()
	return n
}
