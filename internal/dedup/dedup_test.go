package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddNormalizationScenarioS1(t *testing.T) {
	h := New("add", 60*time.Second, nil)
	data := map[string]interface{}{
		"id":                                    "42",
		"price":                                 "7.50",
		"is_shorting":                           "0",
		"is_shorting_allowed":                   "1",
		"is_trade_by_fidor_reservation_allowed":  "1",
		"is_trade_by_sepa_allowed":               "0",
		"payment_option":                        "1",
		"min_trust_level":                       "silver",
		"amount":                                "1.5",
		"min_amount":                            "0.5",
	}

	evt, emitted, err := h.Process(Input{Data: data, SourceID: 1, ArrivedAt: 1000.0})
	require.NoError(t, err)
	require.True(t, emitted)
	require.Equal(t, "42", evt.EventID)
	require.Equal(t, "add", evt.EventType)
	require.Equal(t, 750, evt.Payload["price"])
	require.Equal(t, 1, evt.Payload["short"])
	require.Equal(t, 1, evt.Payload["po"])
	require.Equal(t, 2, evt.Payload["min_trust_level"])
	require.Equal(t, 1.5, evt.Payload["amount"])
}

func TestFirstWinsDeliveryScenarioS2(t *testing.T) {
	h := New("add", 60*time.Second, nil)
	data := map[string]interface{}{"id": "42", "price": "1.00"}

	evt1, emitted1, err := h.Process(Input{Data: data, SourceID: 1, ArrivedAt: 1000.0})
	require.NoError(t, err)
	require.True(t, emitted1)
	require.NotNil(t, evt1)

	evt2, emitted2, err := h.Process(Input{Data: data, SourceID: 2, ArrivedAt: 1000.03})
	require.NoError(t, err)
	require.False(t, emitted2)
	require.Nil(t, evt2)

	cached, found := h.cache.Get("42")
	require.True(t, found)
	stored := cached.(*Event)
	require.Len(t, stored.Observations, 2)
	obs := stored.SortedObservations()
	require.Equal(t, 1, obs[0].SourceID)
	require.Equal(t, 2, obs[1].SourceID)
}

func TestPoFingerprintScenarioS3(t *testing.T) {
	h := New("po", 60*time.Second, nil)
	raw := []byte(`{"10": {"is_trade_by_fidor_reservation_allowed":"1","u'is_trade_by_sepa_allowed":"0"}, "20": {"is_trade_by_fidor_reservation_allowed":"0","u'is_trade_by_sepa_allowed":"1"}}`)

	evt, emitted, err := h.Process(Input{RawData: raw, SourceID: 1, ArrivedAt: 1000.0})
	require.NoError(t, err)
	require.True(t, emitted)
	require.Equal(t, -30, evt.EventID)

	entries, ok := evt.Payload["entries"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, entries, 2)
	require.Equal(t, "10", entries[0]["id"])
	require.Equal(t, 1, entries[0]["po"])
	require.Equal(t, "20", entries[1]["id"])
	require.Equal(t, 2, entries[1]["po"])
}

func TestRmPassthroughAndFingerprint(t *testing.T) {
	h := New("rm", 60*time.Second, nil)
	data := map[string]interface{}{"id": "99"}

	evt, emitted, err := h.Process(Input{Data: data, SourceID: 3, ArrivedAt: 2000.0})
	require.NoError(t, err)
	require.True(t, emitted)
	require.Equal(t, "99", evt.EventID)
	require.Equal(t, data, evt.Payload)
}

func TestEvictionAccumulatesStats(t *testing.T) {
	h := New("rm", 50*time.Millisecond, nil)
	_, emitted, err := h.Process(Input{Data: map[string]interface{}{"id": "1"}, SourceID: 1, ArrivedAt: 0})
	require.NoError(t, err)
	require.True(t, emitted)

	require.Eventually(t, func() bool {
		return h.Stats().Count == 1
	}, time.Second, 5*time.Millisecond)
}
