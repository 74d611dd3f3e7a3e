package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MB

	defaultReconnectInitial  = 1 * time.Second
	defaultReconnectMax      = 5 * time.Second
	defaultReconnectAttempts = 5

	sendBuffer = 256
)

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrBufferFull   = errors.New("transport: send buffer full")
)

type Options struct {
	// URL is the socket endpoint; roomId and userId are appended as query
	// parameters, keying the connection at connect time.
	URL    string
	RoomID string
	UserID string

	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration
	ReconnectAttempts int

	Dialer *websocket.Dialer
}

// Transport wraps the persistent event-typed connection to the chat server.
// It owns reconnection; emissions attempted while disconnected are dropped,
// not queued. Inbound envelopes are dispatched to the handler in delivery
// order on the read goroutine.
type Transport struct {
	opts    Options
	handler EventHandler
	id      string

	state   atomic.Int32
	onState atomic.Pointer[func(State)]

	send chan []byte

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool
}

func New(opts Options, handler EventHandler) *Transport {
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = defaultReconnectInitial
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = defaultReconnectMax
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = defaultReconnectAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Transport{
		opts:    opts,
		handler: handler,
		id:      uuid.NewString(),
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// OnStateChange registers a callback for lifecycle transitions. The callback
// runs on the supervisor goroutine and must not block.
func (t *Transport) OnStateChange(fn func(State)) {
	t.onState.Store(&fn)
}

func (t *Transport) State() State {
	return State(t.state.Load())
}

func (t *Transport) setState(s State) {
	if State(t.state.Swap(int32(s))) == s {
		return
	}
	if fn := t.onState.Load(); fn != nil {
		(*fn)(s)
	}
}

// Connect dials the server, retrying with the bounded backoff schedule. On
// success the read and write pumps start and a supervisor keeps redialing on
// connection loss until the attempt ceiling is hit or Close is called.
func (t *Transport) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cancel()
		return errors.New("transport: already closed")
	}
	t.cancel = cancel
	t.mu.Unlock()

	conn, err := t.dialWithRetry(ctx)
	if err != nil {
		t.setState(StateDisconnected)
		cancel()
		return err
	}

	// The handshake may win the race against a concurrent Close; a conn
	// obtained after the cancel must not start pumps nobody will stop.
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return errors.New("transport: already closed")
	}
	t.conn = conn
	t.started = true
	t.mu.Unlock()

	t.setState(StateConnected)
	go t.supervise(ctx, conn)
	return nil
}

// Close releases the connection and stops the pumps. Safe to call more than
// once.
func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	cancel := t.cancel
	conn := t.conn
	started := t.started
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		_ = conn.Close()
	}
	t.setState(StateDisconnected)
	if started {
		<-t.done
	}
}

// Emit marshals the payload into an envelope and enqueues it. Fire and
// forget: while disconnected the emission is dropped with a warning.
func (t *Transport) Emit(event string, payload any) error {
	if t.State() != StateConnected {
		log.Warn().Str("event", event).Msg("transport: not connected, dropping emission")
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case t.send <- frame:
		return nil
	default:
		log.Warn().Str("event", event).Msg("transport: send buffer full, dropping emission")
		return ErrBufferFull
	}
}

func (t *Transport) setConn(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
}

func (t *Transport) supervise(ctx context.Context, conn *websocket.Conn) {
	defer close(t.done)

	for {
		t.runConn(ctx, conn)
		if ctx.Err() != nil {
			t.setState(StateDisconnected)
			return
		}

		next, err := t.dialWithRetry(ctx)
		if err != nil {
			log.Error().Err(err).Str("connId", t.id).Msg("transport: reconnect attempts exhausted")
			t.setState(StateDisconnected)
			return
		}
		// A redial handshake can complete just as Close cancels the context.
		// Such a conn has no owner: discard it instead of starting pumps that
		// would keep readPump alive forever and deadlock Close on t.done.
		if ctx.Err() != nil {
			_ = next.Close()
			t.setState(StateDisconnected)
			return
		}
		conn = next
		t.setConn(conn)
		t.setState(StateConnected)
	}
}

// runConn drives one live connection: the write pump on its own goroutine,
// the read pump inline. Returns when the connection dies.
func (t *Transport) runConn(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.writePump(conn, stop)
	}()

	t.readPump(ctx, conn)
	close(stop)
	_ = conn.Close()
	wg.Wait()
}

func (t *Transport) readPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("connId", t.id).Msg("transport: connection lost")
				t.setState(StateConnecting)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			log.Warn().Str("connId", t.id).Msg("transport: unparseable frame skipped")
			continue
		}
		if t.handler != nil {
			t.handler.HandleEvent(env.Event, env.Data)
		}
	}
}

func (t *Transport) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case frame := <-t.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dialWithRetry attempts the bounded backoff schedule: initial delay doubling
// up to the cap, a fixed number of attempts, then gives up.
func (t *Transport) dialWithRetry(ctx context.Context) (*websocket.Conn, error) {
	var lastErr error
	delay := t.opts.ReconnectInitial

	for attempt := 1; attempt <= t.opts.ReconnectAttempts; attempt++ {
		conn, err := t.dial(ctx)
		if err == nil {
			log.Info().Str("connId", t.id).Int("attempt", attempt).Msg("transport: connected")
			return conn, nil
		}
		lastErr = err
		if attempt == t.opts.ReconnectAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("retryIn", delay).Msg("transport: dial failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > t.opts.ReconnectMax {
			delay = t.opts.ReconnectMax
		}
	}
	return nil, lastErr
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(t.opts.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("roomId", t.opts.RoomID)
	q.Set("userId", t.opts.UserID)
	u.RawQuery = q.Encode()

	conn, _, err := t.opts.Dialer.DialContext(ctx, u.String(), nil)
	return conn, err
}
