package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroadcaster_DeliversToGroupMembersOnly(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	in1 := &captureSender{}
	in2 := &captureSender{}
	out := &captureSender{}

	assert.NoError(t, r.OnConnect("conn-1", "user-1", in1))
	assert.NoError(t, r.OnConnect("conn-2", "user-2", in2))
	assert.NoError(t, r.OnConnect("conn-3", "user-3", out))

	_, err := r.Join("room", "conn-1")
	assert.NoError(t, err)
	_, err = r.Join("room", "conn-2")
	assert.NoError(t, err)

	delivered := b.Broadcast("room", "Like", map[string]int{"likes": 3})
	assert.Equal(t, 2, delivered)

	assert.Equal(t, 1, in1.count())
	assert.Equal(t, 1, in2.count())
	assert.Equal(t, 0, out.count())

	ev, ok := in1.last()
	assert.True(t, ok)
	assert.Equal(t, "Like", ev.Event)
}

func TestBroadcaster_EmptyGroup(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	assert.Equal(t, 0, b.Broadcast("no-such-room", "Like", nil))
}

func TestBroadcaster_SlowReceiverIsSkipped(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	ok := &captureSender{}
	stuck := &captureSender{full: true}

	assert.NoError(t, r.OnConnect("conn-1", "user-1", ok))
	assert.NoError(t, r.OnConnect("conn-2", "user-2", stuck))

	_, err := r.Join("room", "conn-1")
	assert.NoError(t, err)
	_, err = r.Join("room", "conn-2")
	assert.NoError(t, err)

	// 詰まった接続はスキップされ、残りには届く
	delivered := b.Broadcast("room", "Like", nil)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 0, stuck.count())
}

func TestBroadcaster_DisconnectedMemberNotDelivered(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)

	s1 := &captureSender{}
	s2 := &captureSender{}

	assert.NoError(t, r.OnConnect("conn-1", "user-1", s1))
	assert.NoError(t, r.OnConnect("conn-2", "user-2", s2))

	_, err := r.Join("room", "conn-1")
	assert.NoError(t, err)
	_, err = r.Join("room", "conn-2")
	assert.NoError(t, err)

	r.OnDisconnect("conn-2")

	delivered := b.Broadcast("room", "Like", nil)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, s2.count())
}
