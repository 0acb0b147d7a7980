// Package source owns one mirror endpoint end to end: dialing, driving
// its protocol variant to the RAW state, forwarding parsed events
// upstream tagged with a stable source id, and reconnecting with backoff
// whenever the connection is lost.
package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/matzefriedrich/bitcoinDE-API/internal/bitcoindelog"
	"github.com/matzefriedrich/bitcoinDE-API/internal/protocol"
	"github.com/matzefriedrich/bitcoinDE-API/internal/transport"
)

// Protocol is the subset of internal/protocol's V09/V20 types a
// Supervisor needs; satisfied by *protocol.V09 and *protocol.V20.
type Protocol interface {
	Run(ctx context.Context, tr *transport.Transport, out chan<- protocol.Event) error
}

// ProtocolFactory builds a fresh Protocol instance for each connection
// attempt, since handshake state (nonce, cookie, ping interval) must not
// leak across reconnects.
type ProtocolFactory func() Protocol

// Descriptor configures one mirror source.
type Descriptor struct {
	SourceID int
	Hostname string
	Variant  protocol.Variant
	NewProto ProtocolFactory
}

// Delivery is one event tagged with the source that produced it.
type Delivery struct {
	Event    protocol.Event
	SourceID int
}

const (
	backoffInitial = 500 * time.Millisecond
	backoffMax     = 30 * time.Second
)

// Supervisor owns the reconnect loop for one Descriptor.
type Supervisor struct {
	desc Descriptor
	log  *slog.Logger
}

// New builds a Supervisor for desc. logger may be nil, in which case
// slog.Default() is used.
func New(desc Descriptor, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		desc: desc,
		log:  bitcoindelog.Component(logger, "source.Supervisor", "source_id", desc.SourceID, "host", desc.Hostname),
	}
}

// Run dials desc.Hostname, drives its protocol to RAW, and forwards
// events to out until ctx is cancelled. On any disconnect or handshake
// failure it reconnects after an exponential backoff, resetting the
// backoff when the ended connection delivered at least one event (which
// only happens after RAW is reached); a connection that reached RAW but
// delivered no event does not reset it. It only returns when ctx is done.
func (s *Supervisor) Run(ctx context.Context, out chan<- Delivery) {
	backoff := backoffInitial
	for {
		if ctx.Err() != nil {
			return
		}

		reachedRAW, err := s.connectOnce(ctx, out)
		if err != nil {
			s.log.Error("connection attempt failed", "err", err)
		}

		if reachedRAW {
			backoff = backoffInitial
		} else {
			backoff = nextBackoff(backoff)
		}

		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > backoffMax {
		next = backoffMax
	}
	return next
}

// connectOnce performs a single dial-handshake-stream attempt. It
// reports whether at least one event was delivered, which implies the
// RAW state was reached (for backoff reset purposes), and the error that
// ended the attempt, if any.
func (s *Supervisor) connectOnce(ctx context.Context, out chan<- Delivery) (reachedRAW bool, err error) {
	tr, err := transport.Dial(ctx, s.desc.Hostname)
	if err != nil {
		return false, err
	}
	defer tr.Close(nil)

	proto := s.desc.NewProto()

	protoEvents := make(chan protocol.Event)
	runErr := make(chan error, 1)
	go func() {
		runErr <- proto.Run(ctx, tr, protoEvents)
	}()

	for {
		select {
		case <-ctx.Done():
			tr.Close(ctx.Err())
			<-runErr
			return reachedRAW, ctx.Err()
		case evt, ok := <-protoEvents:
			if !ok {
				protoEvents = nil
				continue
			}
			reachedRAW = true
			select {
			case out <- Delivery{Event: evt, SourceID: s.desc.SourceID}:
			case <-ctx.Done():
			}
		case err := <-runErr:
			return reachedRAW, err
		}
	}
}
