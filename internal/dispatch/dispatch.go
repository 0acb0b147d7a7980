// Package dispatch routes parsed protocol events to the dedup handler
// registered for their wire event name, dropping anything unrecognized.
package dispatch

import (
	"log/slog"
	"time"

	"github.com/matzefriedrich/bitcoinDE-API/internal/dedup"
)

// wireNameToStream maps the five external event names bitcoin.de sends
// to the internal stream name their handler is keyed by.
var wireNameToStream = map[string]string{
	"remove_order":           "rm",
	"add_order":              "add",
	"skn":                    "skn",
	"spr":                    "spr",
	"refresh_express_option": "po",
}

// Delivery is one event arriving from a source, ready for dispatch.
type Delivery struct {
	Name      string
	Data      map[string]interface{}
	RawData   []byte
	SourceID  int
	ArrivedAt float64
}

// Dispatcher owns one dedup.Handler per stream and routes Deliveries to
// the right one by wire event name.
type Dispatcher struct {
	handlers map[string]*dedup.Handler
	log      *slog.Logger

	unknownCount int
}

// New builds a Dispatcher from a stream-name-to-handler map (as produced
// by NewDefaultHandlers). logger may be nil.
func New(handlers map[string]*dedup.Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: handlers,
		log:      logger.With("component", "dispatch.Dispatcher"),
	}
}

// NewDefaultHandlers builds the five dedup.Handlers this feed needs,
// each with the given retention, keyed by internal stream name.
func NewDefaultHandlers(retention time.Duration, logger *slog.Logger) map[string]*dedup.Handler {
	streams := []string{"add", "rm", "skn", "spr", "po"}
	out := make(map[string]*dedup.Handler, len(streams))
	for _, s := range streams {
		out[s] = dedup.New(s, retention, logger)
	}
	return out
}

// Dispatch routes one Delivery to its handler, returning the canonical
// Event on first sighting (nil otherwise). Unknown wire names are
// dropped with a diagnostic counter.
func (d *Dispatcher) Dispatch(del Delivery) (*dedup.Event, bool) {
	nowSeconds := float64(time.Now().UnixNano()) / float64(time.Second)
	latency := time.Duration((nowSeconds - del.ArrivedAt) * float64(time.Second))

	stream, ok := wireNameToStream[del.Name]
	if !ok {
		d.unknownCount++
		d.log.Warn("dropping unknown event name", "name", del.Name, "source_id", del.SourceID, "dispatch_latency", latency)
		return nil, false
	}

	h, ok := d.handlers[stream]
	if !ok {
		d.log.Error("no handler registered for stream", "stream", stream)
		return nil, false
	}

	evt, emitted, err := h.Process(dedup.Input{
		Data:      del.Data,
		RawData:   del.RawData,
		SourceID:  del.SourceID,
		ArrivedAt: del.ArrivedAt,
	})
	if err != nil {
		d.log.Warn("dropping frame handler rejected", "stream", stream, "source_id", del.SourceID, "err", err, "dispatch_latency", latency)
		return nil, false
	}
	if latency > 10*time.Millisecond {
		d.log.Debug("slow dispatch", "stream", stream, "source_id", del.SourceID, "dispatch_latency", latency)
	}
	if !emitted {
		return nil, false
	}
	return evt, true
}

// UnknownCount reports how many deliveries were dropped for carrying an
// unrecognized wire event name.
func (d *Dispatcher) UnknownCount() int { return d.unknownCount }
