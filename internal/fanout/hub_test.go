package fanout

import (
	"errors"
	"testing"

	"github.com/matzefriedrich/bitcoinDE-API/internal/dedup"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name     string
	received []*dedup.Event
	failNext bool
	calls    *[]string
}

func (s *recordingSink) Name() string { return s.name }
func (s *recordingSink) Send(evt *dedup.Event) error {
	if s.calls != nil {
		*s.calls = append(*s.calls, s.name)
	}
	if s.failNext {
		s.failNext = false
		return errors.New("boom")
	}
	s.received = append(s.received, evt)
	return nil
}

func TestBroadcastDeliversToAllInRegistrationOrder(t *testing.T) {
	h := New(nil)
	var order []string
	a := &recordingSink{name: "a", calls: &order}
	b := &recordingSink{name: "b", calls: &order}
	h.Register(a)
	h.Register(b)

	evt := &dedup.Event{EventID: "1", EventType: "add"}
	h.Broadcast(evt)

	require.Len(t, a.received, 1)
	require.Len(t, b.received, 1)
	require.Same(t, evt, a.received[0])

	require.Equal(t, []string{"a", "b"}, order)
}

func TestBroadcastSkipsFailingSinkWithoutStoppingOthers(t *testing.T) {
	h := New(nil)
	failing := &recordingSink{name: "failing", failNext: true}
	ok := &recordingSink{name: "ok"}
	h.Register(failing)
	h.Register(ok)

	h.Broadcast(&dedup.Event{EventID: "1"})

	require.Empty(t, failing.received)
	require.Len(t, ok.received, 1)
}

func TestUnregisterRemovesSink(t *testing.T) {
	h := New(nil)
	s := &recordingSink{name: "s"}
	h.Register(s)
	h.Unregister("s")

	h.Broadcast(&dedup.Event{EventID: "1"})
	require.Empty(t, s.received)
}
