// Package sink implements the reference event sink: a ZeroMQ publish
// socket emitting one MessagePack document per canonical event.
package sink

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/matzefriedrich/bitcoinDE-API/internal/bitcoindelog"
	"github.com/matzefriedrich/bitcoinDE-API/internal/dedup"
	zmq "github.com/pebbe/zmq4"
	"github.com/vmihailenco/msgpack/v5"
)

// wireMessage is the MessagePack map shape {timestamp, type, id, data}.
type wireMessage struct {
	Timestamp int64                  `msgpack:"timestamp"`
	Type      string                 `msgpack:"type"`
	ID        interface{}            `msgpack:"id"`
	Data      map[string]interface{} `msgpack:"data"`
}

// ZmqSink binds a ZeroMQ PUB socket at tcp://*:<port> and publishes every
// event it's sent as a single MessagePack document, with an empty topic
// prefix so any subscriber filter matches.
type ZmqSink struct {
	name string
	mu   sync.Mutex
	sock *zmq.Socket
	log  *slog.Logger
}

// NewZmqSink binds the publish socket. The caller must call Close when
// done.
func NewZmqSink(port int, logger *slog.Logger) (*ZmqSink, error) {
	sock, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("sink: create PUB socket: %w", err)
	}
	addr := fmt.Sprintf("tcp://*:%d", port)
	if err := sock.Bind(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("sink: bind %s: %w", addr, err)
	}
	return &ZmqSink{
		name: "zmq",
		sock: sock,
		log:  bitcoindelog.Component(logger, "sink.ZmqSink", "addr", addr),
	}, nil
}

// Name identifies this sink for fanout.Hub registration/logging.
func (s *ZmqSink) Name() string { return s.name }

// Send encodes evt as MessagePack and publishes it with no topic prefix.
func (s *ZmqSink) Send(evt *dedup.Event) error {
	buf, err := encodeEvent(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.sock.SendBytes(buf, 0); err != nil {
		return fmt.Errorf("sink: publish: %w", err)
	}
	return nil
}

func encodeEvent(evt *dedup.Event) ([]byte, error) {
	msg := wireMessage{
		Timestamp: int64(evt.FirstSeenAt),
		Type:      evt.EventType,
		ID:        evt.EventID,
		Data:      evt.Payload,
	}
	buf, err := msgpack.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("sink: marshal event: %w", err)
	}
	return buf, nil
}

// Close releases the underlying socket.
func (s *ZmqSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sock.Close()
}
