package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatchRoutesKnownEventNames(t *testing.T) {
	handlers := NewDefaultHandlers(60*time.Second, nil)
	d := New(handlers, nil)

	evt, emitted := d.Dispatch(Delivery{
		Name:      "add_order",
		Data:      map[string]interface{}{"id": "1", "price": "1.00"},
		SourceID:  1,
		ArrivedAt: 100,
	})
	require.True(t, emitted)
	require.Equal(t, "add", evt.EventType)
}

func TestDispatchDropsUnknownEventNames(t *testing.T) {
	handlers := NewDefaultHandlers(60*time.Second, nil)
	d := New(handlers, nil)

	evt, emitted := d.Dispatch(Delivery{Name: "something_else", SourceID: 1, ArrivedAt: 100})
	require.False(t, emitted)
	require.Nil(t, evt)
	require.Equal(t, 1, d.UnknownCount())
}

func TestDispatchRoutesAllFiveStreams(t *testing.T) {
	handlers := NewDefaultHandlers(60*time.Second, nil)
	d := New(handlers, nil)

	cases := []struct {
		name string
		data map[string]interface{}
	}{
		{"add_order", map[string]interface{}{"id": "4", "price": "1.00"}},
		{"remove_order", map[string]interface{}{"id": "1"}},
		{"skn", map[string]interface{}{"uid": "2"}},
		{"spr", map[string]interface{}{"uid": "3"}},
	}
	for _, c := range cases {
		_, emitted := d.Dispatch(Delivery{Name: c.name, Data: c.data, SourceID: 1, ArrivedAt: 1})
		require.True(t, emitted, "event %s should be routed and emitted", c.name)
	}

	_, emitted := d.Dispatch(Delivery{
		Name:      "refresh_express_option",
		RawData:   []byte(`{"10":{"is_trade_by_fidor_reservation_allowed":"1","u'is_trade_by_sepa_allowed":"0"}}`),
		SourceID:  1,
		ArrivedAt: 1,
	})
	require.True(t, emitted)
}
