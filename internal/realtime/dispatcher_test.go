package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOutboxFullBufferClosesConnection(t *testing.T) {
	o, err := NewOutbox(1)
	require.NoError(t, err)
	require.Contains(t, o.ID(), "conn_")

	require.NoError(t, o.Push(Event{Type: "one"}))
	require.ErrorIs(t, o.Push(Event{Type: "two"}), ErrBufferFull)
	require.ErrorIs(t, o.Push(Event{Type: "three"}), ErrClosed)

	require.NotPanics(t, o.Close)

	select {
	case <-o.Done():
	default:
		t.Fatal("expected done to be closed")
	}
}

func TestOutboxRejectsNonPositiveSize(t *testing.T) {
	_, err := NewOutbox(0)
	require.Error(t, err)
}

func receive(t *testing.T, o *Outbox) Event {
	t.Helper()
	select {
	case e := <-o.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestDispatchDeliversToOnlineRecipient(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, zap.NewNop())
	defer d.Close()

	b := newOutbox(t, 4)
	r.Register("b", b)

	d.Dispatch(NewMessage(map[string]string{"text": "hi"}), "b")
	e := receive(t, b)
	require.Equal(t, TypeNewMessage, e.Type)
}

func TestDispatchToOfflineRecipientIsNoop(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, zap.NewNop())

	require.NotPanics(t, func() { d.Dispatch(NewMessage("x"), "nobody") })
	d.Close()
}

func TestDispatchReleasesOverflowingConnection(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, zap.NewNop())

	slow := newOutbox(t, 1)
	r.Register("slow", slow)

	d.Dispatch(NewMessage(1), "slow")
	d.Dispatch(NewMessage(2), "slow")
	d.Close()

	_, ok := r.Lookup("slow")
	require.False(t, ok)
	require.ErrorIs(t, slow.Push(Event{}), ErrClosed)
}

func TestBroadcastReachesEveryone(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, zap.NewNop())
	defer d.Close()

	a, b := newOutbox(t, 2), newOutbox(t, 2)
	r.Register("a", a)
	r.Register("b", b)

	d.Broadcast(OnlineUsers(r.Online()))
	require.Equal(t, TypeOnlineUsers, receive(t, a).Type)
	require.Equal(t, []string{"a", "b"}, receive(t, b).Payload)
}

func TestDispatchAfterCloseIsDropped(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, zap.NewNop())
	c := newOutbox(t, 1)
	r.Register("u", c)

	d.Close()
	d.Dispatch(NewMessage("late"), "u")

	select {
	case <-c.Events():
		t.Fatal("expected no delivery after close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchPreservesOrderPerRecipient(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, zap.NewNop())
	defer d.Close()

	const n = 200
	b := newOutbox(t, n)
	r.Register("b", b)

	for i := 0; i < n; i++ {
		d.Dispatch(Event{Type: TypeNewMessage, Payload: i}, "b")
	}
	for i := 0; i < n; i++ {
		require.Equal(t, i, receive(t, b).Payload)
	}
}

func TestDispatchFromManyGoroutinesKeepsEachSendersOrder(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, zap.NewNop())
	defer d.Close()

	const senders, perSender = 8, 50
	b := newOutbox(t, senders*perSender)
	r.Register("b", b)

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				d.Dispatch(Event{Type: TypeNewMessage, Payload: [2]int{s, i}}, "b")
			}
		}(s)
	}
	wg.Wait()

	next := make([]int, senders)
	for k := 0; k < senders*perSender; k++ {
		p := receive(t, b).Payload.([2]int)
		require.Equal(t, next[p[0]], p[1], "sender %d out of order", p[0])
		next[p[0]]++
	}
}
