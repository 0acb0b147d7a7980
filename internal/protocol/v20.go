package protocol

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/matzefriedrich/bitcoinDE-API/internal/transport"
)

const (
	defaultPingInterval  = 20 * time.Second
	subscribeAfter       = 2 * time.Second
	initialPingAfter     = 3 * time.Second
	marketSubscribeFrame = "40/market,"
	marketNamespaceSep   = "42/market,"
)

// V20 drives the engine.io-v3 handshake: an HTTP polling exchange that
// returns a session cookie and ping interval, optionally repeated, then
// promoted to a WebSocket upgrade.
type V20 struct {
	Logger *slog.Logger
}

func (p *V20) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Run executes the V20 handshake over tr, then loops delivering parsed
// events to out until the connection closes or a protocol error occurs.
func (p *V20) Run(ctx context.Context, tr *transport.Transport, out chan<- Event) error {
	log := p.logger().With("variant", "V20")

	cookie := ""
	pingInterval := defaultPingInterval

	// S0_POLL_GET / S1_POLL_CONFIRM
	for {
		code, gotCookie, body, err := p.poll(tr, cookie)
		if err != nil {
			return err
		}
		if gotCookie != "" {
			cookie = gotCookie
		}
		if code != 200 {
			return fmt.Errorf("v20: poll rejected with code %d", code)
		}
		if pi, ok := extractPingInterval(body); ok {
			pingInterval = pi
		}
		if strings.Contains(body, `"upgrades"`) {
			break
		}
		log.Debug("poll confirmed without upgrade info, repeating")
	}

	clientKey, err := generateClientKey()
	if err != nil {
		return err
	}
	if err := p.sendUpgrade(tr, cookie, clientKey); err != nil {
		return err
	}
	if err := p.waitUpgrade(tr, clientKey, log); err != nil {
		return err
	}

	log.Debug("reached raw state", "ping_interval", pingInterval)
	return p.rawLoop(ctx, tr, out, pingInterval, log)
}

// poll sends one GET /socket.io/1/?EIO=3&...&transport=polling request
// and parses the status code, any Set-Cookie header, and the response
// body (scanned, not JSON-parsed).
func (p *V20) poll(tr *transport.Transport, cookie string) (code int, gotCookie string, body string, err error) {
	io := ""
	if cookie != "" {
		io = "&io=" + cookie
	}
	req := fmt.Sprintf("GET /socket.io/1/?EIO=3&t=%d-0&transport=polling%s HTTP/1.1\r\n\r\n",
		time.Now().UnixMilli(), io)
	if err := tr.Write([]byte(req)); err != nil {
		return 0, "", "", fmt.Errorf("v20: send poll: %w", err)
	}

	r := tr.Reader()
	status, err := readLine(r)
	if err != nil {
		return 0, "", "", fmt.Errorf("v20: read poll status: %w", err)
	}
	fields := strings.SplitN(status, " ", 3)
	if len(fields) < 2 {
		return 0, "", "", fmt.Errorf("v20: malformed status line: %q", status)
	}
	code, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, "", "", fmt.Errorf("v20: malformed status code: %q", status)
	}

	for {
		line, err := readLine(r)
		if err != nil {
			return 0, "", "", fmt.Errorf("v20: read poll headers: %w", err)
		}
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "set-cookie:") {
			gotCookie = extractCookie(line[len("set-cookie:"):])
		}
	}

	// The body is a short socket.io text chunk; this client only scans it
	// for specific substrings, matching original_source's own non-JSON
	// scan of the poll body.
	var b strings.Builder
	for {
		line, err := readLine(r)
		if err != nil {
			return 0, "", "", fmt.Errorf("v20: read poll body: %w", err)
		}
		if line == "" || len(line) <= 3 {
			break
		}
		b.WriteString(line)
	}
	return code, gotCookie, b.String(), nil
}

func extractCookie(headerValue string) string {
	idx := strings.Index(headerValue, "=")
	if idx < 0 {
		return ""
	}
	rest := headerValue[idx+1:]
	if semi := strings.Index(rest, ";"); semi >= 0 {
		rest = rest[:semi]
	}
	return strings.TrimSpace(rest)
}

func extractPingInterval(body string) (time.Duration, bool) {
	idx := strings.Index(body, "pingInterval")
	if idx < 0 {
		return 0, false
	}
	rest := body[idx+len("pingInterval"):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return 0, false
	}
	rest = rest[colon+1:]
	end := len(rest)
	for i, r := range rest {
		if r == ',' || r == '}' {
			end = i
			break
		}
	}
	ms, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil {
		return 0, false
	}
	seconds := float64(ms) / 1100.0
	return time.Duration(seconds * float64(time.Second)), true
}

func (p *V20) sendUpgrade(tr *transport.Transport, cookie, clientKey string) error {
	// Per S2_UPGRADE_SEND, the cookie is appended directly
	// after "-2" with no "&io=" prefix — this mirrors the reference
	// implementation's send_upgrade exactly, unlike the confirm-poll path
	// above which does prefix it.
	req := fmt.Sprintf("GET /socket.io/1/?EIO=3&transport=websocket&t=%d-2%s HTTP/1.1\r\n"+
		"Connection: Upgrade\r\n"+
		"Upgrade: Websocket\r\n"+
		"Sec-WebSocket-Key: %s\r\n"+
		"Sec-WebSocket-Version: 13\r\n"+
		"Pragma: no-cache\r\n"+
		"Cache-Control: no-cache\r\n\r\n", time.Now().UnixMilli(), cookie, clientKey)
	if err := tr.Write([]byte(req)); err != nil {
		return fmt.Errorf("v20: send upgrade: %w", err)
	}
	return nil
}

func (p *V20) waitUpgrade(tr *transport.Transport, clientKey string, log *slog.Logger) error {
	r := tr.Reader()
	status, err := readLine(r)
	if err != nil {
		return fmt.Errorf("v20: read upgrade status: %w", err)
	}
	if !strings.Contains(status, "HTTP/1.1 101") {
		return fmt.Errorf("v20: upgrade rejected: %q", status)
	}

	accepted := false
	for {
		line, err := readLine(r)
		if err != nil {
			return fmt.Errorf("v20: read upgrade headers: %w", err)
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
		return fmt.Errorf("v20: upgrade response missing Sec-WebSocket-Accept")
	}
	return nil
}

func (p *V20) rawLoop(ctx context.Context, tr *transport.Transport, out chan<- Event, pingInterval time.Duration, log *slog.Logger) error {
	done := make(chan struct{})
	defer close(done)
	frames := make(chan frameOrErr)
	go readFramesLoop(tr.Reader(), frames, done)

	subscribeTimer := time.NewTimer(subscribeAfter)
	defer subscribeTimer.Stop()
	pingTimer := time.NewTimer(initialPingAfter)
	defer pingTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tr.CloseNotify():
			return fmt.Errorf("v20: transport closed: %w", tr.Err())
		case <-subscribeTimer.C:
			if err := tr.Write(encodeControlString(marketSubscribeFrame)); err != nil {
				return fmt.Errorf("v20: send subscribe: %w", err)
			}
		case <-pingTimer.C:
			if err := tr.Write(encodeControlString("2")); err != nil {
				return fmt.Errorf("v20: send ping: %w", err)
			}
		case fe := <-frames:
			if fe.err != nil {
				return fmt.Errorf("v20: read frame: %w", fe.err)
			}
			t := nowSeconds()
			if err := p.handleFrame(fe.frame.Payload, t, out, pingTimer, pingInterval, log); err != nil {
				return err
			}
		}
	}
}

func (p *V20) handleFrame(payload []byte, t float64, out chan<- Event, pingTimer *time.Timer, pingInterval time.Duration, log *slog.Logger) error {
	switch {
	case len(payload) == 1 && payload[0] == '3':
		// Pong: schedule the next ping exactly pingInterval seconds out.
		if !pingTimer.Stop() {
			select {
			case <-pingTimer.C:
			default:
			}
		}
		pingTimer.Reset(pingInterval)
		return nil
	case len(payload) == 2:
		hint := binary.BigEndian.Uint16(payload)
		log.Debug("length-hint frame", "hint", hint)
		return nil
	}

	parts := bytes.SplitN(payload, []byte(marketNamespaceSep), 2)
	if len(parts) != 2 {
		log.Debug("unrecognized frame", "len", len(payload))
		return nil
	}
	content := parts[1]

	var arr []json.RawMessage
	if err := json.Unmarshal(content, &arr); err != nil || len(arr) < 2 {
		log.Warn("dropping frame with malformed JSON", "err", err)
		return nil
	}
	var name string
	if err := json.Unmarshal(arr[0], &name); err != nil {
		log.Warn("dropping frame with malformed event name", "err", err)
		return nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(arr[1], &args); err != nil {
		log.Warn("dropping frame with malformed event payload", "err", err)
		return nil
	}

	select {
	case out <- Event{Name: name, Args: args, RawArgs: arr[1], ReceiveAt: t}:
	default:
		log.Warn("event channel full, dropping event", "name", name)
	}
	return nil
}
