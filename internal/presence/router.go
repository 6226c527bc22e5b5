// Package presence tracks which live channels belong to which account and
// fans events out to them.
package presence

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/socialhub/backend/internal/logging"
)

// ErrChannelClosed is returned by channels that can no longer accept messages.
var ErrChannelClosed = errors.New("channel closed")

// Message is the envelope written to live channels.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Channel is one live, addressable client connection. Send must not block.
type Channel interface {
	ID() string
	Send(msg Message) error
}

type entry struct {
	channel Channel
	userID  string
}

// Router is the process-local registry of open channels, indexed both by
// channel and by owning user.
type Router struct {
	mu       sync.RWMutex
	channels map[string]entry
	byUser   map[string]map[string]struct{}
}

// NewRouter returns an empty registry.
func NewRouter() *Router {
	return &Router{
		channels: make(map[string]entry),
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Register tracks ch as owned by userID. An empty userID marks an
// unauthenticated channel that only receives global broadcasts.
// Registering an existing channel ID replaces the previous entry.
func (r *Router) Register(ch Channel, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(ch.ID())
	r.channels[ch.ID()] = entry{channel: ch, userID: userID}
	if userID == "" {
		return
	}
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[ch.ID()] = struct{}{}
}

// Unregister forgets the channel. Unknown IDs are ignored.
func (r *Router) Unregister(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(channelID)
}

func (r *Router) removeLocked(channelID string) {
	e, ok := r.channels[channelID]
	if !ok {
		return
	}
	delete(r.channels, channelID)
	if set, ok := r.byUser[e.userID]; ok {
		delete(set, channelID)
		if len(set) == 0 {
			delete(r.byUser, e.userID)
		}
	}
}

// ChannelsFor returns the IDs of the user's open channels, sorted.
func (r *Router) ChannelsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ChannelsExcluding returns the IDs of every open channel not owned by userID, sorted.
func (r *Router) ChannelsExcluding(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.channels))
	for id, e := range r.channels {
		if userID != "" && e.userID == userID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UserFor reports the owner of a channel.
func (r *Router) UserFor(channelID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.channels[channelID]
	if !ok {
		return "", false
	}
	return e.userID, true
}

// Len returns the number of open channels.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Emit delivers the event to every channel owned by userID and returns how
// many channels accepted it. An offline user is a no-op.
func (r *Router) Emit(ctx context.Context, userID, event string, payload any) int {
	if userID == "" {
		return 0
	}
	return r.deliver(ctx, r.snapshot(r.ChannelsFor(userID)), Message{Event: event, Payload: payload})
}

// EmitExcept delivers the event to every channel not owned by userID.
func (r *Router) EmitExcept(ctx context.Context, userID, event string, payload any) int {
	return r.deliver(ctx, r.snapshot(r.ChannelsExcluding(userID)), Message{Event: event, Payload: payload})
}

func (r *Router) snapshot(ids []string) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]Channel, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.channels[id]; ok {
			channels = append(channels, e.channel)
		}
	}
	return channels
}

// deliver is fire-and-forget: failures are logged and dropped.
func (r *Router) deliver(ctx context.Context, channels []Channel, msg Message) int {
	delivered := 0
	for _, ch := range channels {
		if err := ch.Send(msg); err != nil {
			logging.FromContext(ctx).Debug("dropped live event",
				"channel_id", ch.ID(),
				"event", msg.Event,
				"error", err,
			)
			continue
		}
		delivered++
	}
	return delivered
}
