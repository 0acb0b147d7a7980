package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/matzefriedrich/bitcoinDE-API/internal/transport"
)

// heartbeatInterval is how long after handling any raw-mode frame the
// client schedules its next "2::" heartbeat.
const heartbeatInterval = 25 * time.Second

// V09 drives the legacy socket.io v0.9 handshake: a single HTTP poll
// whose body carries a session nonce, followed by an upgrade GET to
// /socket.io/1/websocket/<nonce>.
type V09 struct {
	Logger *slog.Logger
}

func (p *V09) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Run executes the full V09 handshake over tr, then loops delivering
// parsed events to out until the connection closes or a protocol error
// occurs. It always returns a non-nil error describing why it stopped;
// the caller (internal/source.Supervisor) treats any return as terminal
// and reconnects.
func (p *V09) Run(ctx context.Context, tr *transport.Transport, out chan<- Event) error {
	log := p.logger().With("variant", "V09")

	if err := p.handshake(tr, log); err != nil {
		return err
	}
	log.Debug("reached raw state")
	return p.rawLoop(ctx, tr, out, log)
}

func (p *V09) handshake(tr *transport.Transport, log *slog.Logger) error {
	r := tr.Reader()

	// S0_INIT
	reqLine := fmt.Sprintf("GET /socket.io/1/?t=%d HTTP/1.1\r\n", time.Now().UnixMilli())
	if err := tr.Write([]byte(reqLine)); err != nil {
		return fmt.Errorf("v09: send initial poll: %w", err)
	}

	first, err := readLine(r)
	if err != nil {
		return fmt.Errorf("v09: read status line: %w", err)
	}
	if !strings.Contains(first, "HTTP/1.1 200") {
		return fmt.Errorf("v09: initial poll rejected: %q", first)
	}

	// S1_POLL_HEAD: consume headers until blank line.
	for {
		line, err := readLine(r)
		if err != nil {
			return fmt.Errorf("v09: read poll headers: %w", err)
		}
		if line == "" {
			break
		}
	}

	// S1b_LENGTH
	lengthLine, err := readLine(r)
	if err != nil {
		return fmt.Errorf("v09: read chunk length: %w", err)
	}
	_ = lengthLine // length is informational only; content is line-delimited

	// S1c_CONTENT: nonce:t1:t2:options
	content, err := readLine(r)
	if err != nil {
		return fmt.Errorf("v09: read session tuple: %w", err)
	}
	parts := strings.SplitN(content, ":", 4)
	if len(parts) != 4 {
		return fmt.Errorf("v09: malformed session tuple: %q", content)
	}
	nonce, options := parts[0], parts[3]
	if len(nonce) != 20 {
		return fmt.Errorf("v09: unexpected nonce length %d", len(nonce))
	}
	if !strings.Contains(options, "websocket") {
		return fmt.Errorf("v09: server does not offer websocket transport: %q", options)
	}

	clientKey, err := generateClientKey()
	if err != nil {
		return err
	}

	upgrade := fmt.Sprintf("GET /socket.io/1/websocket/%s HTTP/1.1\r\n"+
		"Connection: Upgrade\r\n"+
		"Upgrade: websocket\r\n"+
		"Sec-WebSocket-Key: %s\r\n"+
		"Sec-WebSocket-Version: 13\r\n"+
		"Sec-WebSocket-Extensions: \r\n"+
		"Pragma: no-cache\r\n"+
		"Cache-Control: no-cache\r\n\r\n", nonce, clientKey)
	if err := tr.Write([]byte(upgrade)); err != nil {
		return fmt.Errorf("v09: send upgrade request: %w", err)
	}

	// S2_UPGRADE_WAIT
	status, err := readLine(r)
	if err != nil {
		return fmt.Errorf("v09: read upgrade status: %w", err)
	}
	if !strings.Contains(status, "HTTP/1.1 101") {
		return fmt.Errorf("v09: upgrade rejected: %q", status)
	}

	accepted := false
	for {
		line, err := readLine(r)
		if err != nil {
			return fmt.Errorf("v09: read upgrade headers: %w", err)
		}
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Sec-WebSocket-Accept:") {
			got := strings.TrimSpace(strings.TrimPrefix(line, "Sec-WebSocket-Accept:"))
			want := expectedAccept(clientKey)
			if got != want {
				err := &ErrKeyMismatch{Got: got, Want: want}
				log.Warn("key_mismatch", "err", err)
				return err
			}
			accepted = true
		}
	}
	if !accepted {
		return fmt.Errorf("v09: upgrade response missing Sec-WebSocket-Accept")
	}
	return nil
}

func (p *V09) rawLoop(ctx context.Context, tr *transport.Transport, out chan<- Event, log *slog.Logger) error {
	done := make(chan struct{})
	defer close(done)
	frames := make(chan frameOrErr)
	go readFramesLoop(tr.Reader(), frames, done)

	hb := newHeartbeatTimer()
	defer hb.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tr.CloseNotify():
			return fmt.Errorf("v09: transport closed: %w", tr.Err())
		case <-hb.C():
			if err := tr.Write(wsframeEncodeHeartbeat()); err != nil {
				return fmt.Errorf("v09: send heartbeat: %w", err)
			}
			hb.reset(heartbeatInterval)
		case fe := <-frames:
			if fe.err != nil {
				return fmt.Errorf("v09: read frame: %w", fe.err)
			}
			t := nowSeconds()
			if err := p.handleFrame(fe.frame.Payload, t, out, log); err != nil {
				return err
			}
			hb.reset(heartbeatInterval)
		}
	}
}

func (p *V09) handleFrame(payload []byte, t float64, out chan<- Event, log *slog.Logger) error {
	if len(payload) == 0 {
		return nil
	}
	switch payload[0] {
	case '/':
		log.Debug("raw passthrough frame", "payload", string(payload))
	case '0':
		log.Debug("ping frame received")
	case '5':
		i := 1
		for i < len(payload) && payload[i] == ':' {
			i++
		}
		var msg struct {
			Name string            `json:"name"`
			Args []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(payload[i:], &msg); err != nil {
			log.Warn("dropping frame with malformed JSON", "err", err)
			return nil
		}
		var args map[string]interface{}
		var raw json.RawMessage
		if len(msg.Args) > 0 {
			raw = msg.Args[0]
			if err := json.Unmarshal(raw, &args); err != nil {
				log.Warn("dropping frame with malformed event args", "err", err)
				return nil
			}
		}
		select {
		case out <- Event{Name: msg.Name, Args: args, RawArgs: raw, ReceiveAt: t}:
		default:
			log.Warn("event channel full, dropping event", "name", msg.Name)
		}
	default:
		log.Debug("unknown opcode byte", "byte", payload[0])
	}
	return nil
}

func wsframeEncodeHeartbeat() []byte {
	return encodeControlString("2::")
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
