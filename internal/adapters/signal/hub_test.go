package signal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Hangout/internal/app"
	"github.com/dkeye/Hangout/internal/core"
	"github.com/dkeye/Hangout/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	limit  int
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.limit > 0 && len(c.frames) >= c.limit {
		return ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHubPublishRespectsGroupsAndExcept(t *testing.T) {
	h := NewHub(app.LenientPolicy{})
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.Register("a", a)
	h.Register("b", b)
	h.Register("c", c)
	h.Subscribe("a", "ROOM01")
	h.Subscribe("b", "ROOM01")
	h.Subscribe("c", "ROOM02")

	n := h.Publish("ROOM01", core.Event{Type: core.EvUserLeft}, "a")
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 0, c.count())

	h.Unsubscribe("b", "ROOM01")
	assert.Equal(t, 1, h.Publish("ROOM01", core.Event{Type: core.EvUserLeft}))
	assert.Equal(t, 1, a.count())
}

func TestHubIgnoresGoneConnections(t *testing.T) {
	h := NewHub(nil)
	a := &fakeConn{}
	h.Register("a", a)
	h.Subscribe("a", "ROOM01")
	h.Unregister("a")
	assert.True(t, a.isClosed())

	h.Subscribe("a", "ROOM01")
	assert.Empty(t, h.Members("ROOM01"))
	assert.Equal(t, 0, h.Publish("ROOM01", core.Event{Type: core.EvPong}))
	assert.ErrorIs(t, h.Unicast("a", core.Event{Type: core.EvPong}), domain.ErrTransportGone)
}

func TestHubBackpressurePolicy(t *testing.T) {
	t.Run("kick closes the slow connection", func(t *testing.T) {
		h := NewHub(app.SimplePolicy{})
		slow := &fakeConn{limit: 1}
		h.Register("slow", slow)
		require.NoError(t, h.Unicast("slow", core.Event{Type: core.EvPong}))
		err := h.Unicast("slow", core.Event{Type: core.EvPong})
		assert.ErrorIs(t, err, domain.ErrTransportGone)
		assert.True(t, slow.isClosed())
	})

	t.Run("lenient drops the frame only", func(t *testing.T) {
		h := NewHub(app.LenientPolicy{})
		slow := &fakeConn{limit: 1}
		h.Register("slow", slow)
		require.NoError(t, h.Unicast("slow", core.Event{Type: core.EvPong}))
		_ = h.Unicast("slow", core.Event{Type: core.EvPong})
		assert.False(t, slow.isClosed())
		assert.Equal(t, 1, slow.count())
	})
}
