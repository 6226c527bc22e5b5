package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	id string

	mu       sync.Mutex
	messages []Message
	closed   bool
}

func (c *recordingChannel) ID() string { return c.id }

func (c *recordingChannel) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *recordingChannel) received() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

func TestRouterRegisterAndLookup(t *testing.T) {
	router := NewRouter()
	phone := &recordingChannel{id: "c1"}
	laptop := &recordingChannel{id: "c2"}
	other := &recordingChannel{id: "c3"}
	anonymous := &recordingChannel{id: "c4"}

	router.Register(phone, "alice")
	router.Register(laptop, "alice")
	router.Register(other, "bob")
	router.Register(anonymous, "")

	assert.Equal(t, []string{"c1", "c2"}, router.ChannelsFor("alice"))
	assert.Equal(t, []string{"c3", "c4"}, router.ChannelsExcluding("alice"))
	assert.Empty(t, router.ChannelsFor(""))
	assert.Empty(t, router.ChannelsFor("carol"))

	owner, ok := router.UserFor("c3")
	require.True(t, ok)
	assert.Equal(t, "bob", owner)

	router.Unregister("c1")
	router.Unregister("c1")
	router.Unregister("missing")
	assert.Equal(t, []string{"c2"}, router.ChannelsFor("alice"))
	assert.Equal(t, 3, router.Len())

	_, ok = router.UserFor("c1")
	assert.False(t, ok)
}

func TestRouterEmitFanOut(t *testing.T) {
	ctx := context.Background()
	router := NewRouter()
	phone := &recordingChannel{id: "c1"}
	laptop := &recordingChannel{id: "c2"}
	router.Register(phone, "alice")
	router.Register(laptop, "alice")

	assert.Equal(t, 2, router.Emit(ctx, "alice", "notification-update", map[string]string{"id": "n1"}))
	require.Len(t, phone.received(), 1)
	require.Len(t, laptop.received(), 1)
	assert.Equal(t, "notification-update", phone.received()[0].Event)

	assert.Equal(t, 0, router.Emit(ctx, "offline-user", "notification-update", nil))
	assert.Equal(t, 0, router.Emit(ctx, "", "notification-update", nil))
}

func TestRouterEmitDropsClosedChannels(t *testing.T) {
	ctx := context.Background()
	router := NewRouter()
	open := &recordingChannel{id: "c1"}
	closed := &recordingChannel{id: "c2", closed: true}
	router.Register(open, "alice")
	router.Register(closed, "alice")

	assert.Equal(t, 1, router.Emit(ctx, "alice", "request-received", nil))
	assert.Len(t, open.received(), 1)
	assert.Empty(t, closed.received())
}

func TestRouterEmitExcept(t *testing.T) {
	ctx := context.Background()
	router := NewRouter()
	author := &recordingChannel{id: "c1"}
	reader := &recordingChannel{id: "c2"}
	anonymous := &recordingChannel{id: "c3"}
	router.Register(author, "alice")
	router.Register(reader, "bob")
	router.Register(anonymous, "")

	assert.Equal(t, 2, router.EmitExcept(ctx, "alice", "post-create-global-update", nil))
	assert.Empty(t, author.received())
	assert.Len(t, reader.received(), 1)
	assert.Len(t, anonymous.received(), 1)
}

func TestRouterConcurrentRegistration(t *testing.T) {
	router := NewRouter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch := &recordingChannel{id: fmt.Sprintf("c%d", i)}
			router.Register(ch, fmt.Sprintf("user-%d", i%5))
			router.Emit(context.Background(), fmt.Sprintf("user-%d", i%5), "ping", nil)
			if i%2 == 0 {
				router.Unregister(ch.ID())
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, router.Len())
}
