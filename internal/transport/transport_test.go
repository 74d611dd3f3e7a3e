package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsServer accepts socket connections and exposes the frames and query
// parameters it observed.
type wsServer struct {
	srv *httptest.Server

	mu      sync.Mutex
	conns   []*websocket.Conn
	queries []map[string]string
	frames  []Envelope
	dials   int32
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	ws := &wsServer{}
	r := chi.NewRouter()
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&ws.dials, 1)

		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		ws.mu.Lock()
		ws.conns = append(ws.conns, conn)
		ws.queries = append(ws.queries, map[string]string{
			"roomId": req.URL.Query().Get("roomId"),
			"userId": req.URL.Query().Get("userId"),
		})
		ws.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(data, &env) == nil {
				ws.mu.Lock()
				ws.frames = append(ws.frames, env)
				ws.mu.Unlock()
			}
		}
	})
	ws.srv = httptest.NewServer(r)
	t.Cleanup(ws.srv.Close)
	return ws
}

func (ws *wsServer) url() string {
	return "ws" + strings.TrimPrefix(ws.srv.URL, "http") + "/ws"
}

func (ws *wsServer) dialCount() int {
	return int(atomic.LoadInt32(&ws.dials))
}

func (ws *wsServer) frameCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.frames)
}

func (ws *wsServer) lastConn() *websocket.Conn {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if len(ws.conns) == 0 {
		return nil
	}
	return ws.conns[len(ws.conns)-1]
}

// recordingHandler captures dispatched events in delivery order.
type recordingHandler struct {
	mu     sync.Mutex
	events []string
	datas  []json.RawMessage
}

func (h *recordingHandler) HandleEvent(event string, data json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	h.datas = append(h.datas, data)
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	copy(out, h.events)
	return out
}

func TestConnect_SendsIdentityQueryParams(t *testing.T) {
	ws := newWSServer(t)
	tr := New(Options{URL: ws.url(), RoomID: "room-1", UserID: "user-a"}, nil)
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background()))
	assert.Equal(t, StateConnected, tr.State())

	ws.mu.Lock()
	defer ws.mu.Unlock()
	require.Len(t, ws.queries, 1)
	assert.Equal(t, "room-1", ws.queries[0]["roomId"])
	assert.Equal(t, "user-a", ws.queries[0]["userId"])
}

func TestEmit_DeliversEnvelope(t *testing.T) {
	ws := newWSServer(t)
	tr := New(Options{URL: ws.url(), RoomID: "room-1", UserID: "user-a"}, nil)
	defer tr.Close()
	require.NoError(t, tr.Connect(context.Background()))

	require.NoError(t, tr.Emit(EventMessageSend, map[string]string{"content": "hi"}))

	require.Eventually(t, func() bool {
		return ws.frameCount() == 1
	}, 2*time.Second, 10*time.Millisecond, "the envelope should reach the server")

	ws.mu.Lock()
	defer ws.mu.Unlock()
	assert.Equal(t, EventMessageSend, ws.frames[0].Event)
	assert.JSONEq(t, `{"content":"hi"}`, string(ws.frames[0].Data))
}

func TestEmit_DroppedWhileDisconnected(t *testing.T) {
	tr := New(Options{URL: "ws://localhost:1/ws"}, nil)
	err := tr.Emit(EventMessageSend, map[string]string{"content": "hi"})
	assert.ErrorIs(t, err, ErrNotConnected, "emissions while disconnected are dropped, not queued")
}

func TestInboundFrames_DispatchedInOrder(t *testing.T) {
	ws := newWSServer(t)
	handler := &recordingHandler{}
	tr := New(Options{URL: ws.url(), RoomID: "room-1", UserID: "user-a"}, handler)
	defer tr.Close()
	require.NoError(t, tr.Connect(context.Background()))

	conn := ws.lastConn()
	require.NotNil(t, conn)

	send := func(event, data string) {
		frame, _ := json.Marshal(Envelope{Event: event, Data: json.RawMessage(data)})
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
	}
	send(EventMessageReceived, `{"message":{"messageId":"m1"}}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json"))) // skipped
	send(EventTypingUpdate, `{"userId":"user-b","isTyping":true}`)

	require.Eventually(t, func() bool {
		return len(handler.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{EventMessageReceived, EventTypingUpdate}, handler.snapshot(),
		"frames dispatch in delivery order, unparseable ones are skipped")
}

func TestReconnect_RedialsAfterConnectionLoss(t *testing.T) {
	ws := newWSServer(t)
	handler := &recordingHandler{}
	tr := New(Options{
		URL:              ws.url(),
		RoomID:           "room-1",
		UserID:           "user-a",
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     20 * time.Millisecond,
	}, handler)
	defer tr.Close()

	var states []State
	var stateMu sync.Mutex
	tr.OnStateChange(func(s State) {
		stateMu.Lock()
		states = append(states, s)
		stateMu.Unlock()
	})

	require.NoError(t, tr.Connect(context.Background()))
	require.Equal(t, 1, ws.dialCount())

	// Kill the connection server-side; the supervisor should redial.
	require.NoError(t, ws.lastConn().Close())

	require.Eventually(t, func() bool {
		return ws.dialCount() >= 2 && tr.State() == StateConnected
	}, 2*time.Second, 10*time.Millisecond, "the transport should reconnect on its own")

	// The new connection still works end to end.
	conn := ws.lastConn()
	frame, _ := json.Marshal(Envelope{Event: EventUserOnline, Data: json.RawMessage(`{"userId":"user-b"}`)})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
	require.Eventually(t, func() bool {
		return len(handler.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stateMu.Lock()
	defer stateMu.Unlock()
	assert.Contains(t, states, StateConnecting, "the loss must surface as connecting")
}

func TestConnect_GivesUpAfterAttemptCeiling(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound) // refuse the upgrade
	}))
	defer srv.Close()

	tr := New(Options{
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectInitial:  time.Millisecond,
		ReconnectMax:      2 * time.Millisecond,
		ReconnectAttempts: 3,
	}, nil)
	defer tr.Close()

	err := tr.Connect(context.Background())
	require.Error(t, err, "connect must fail once the ceiling is hit")
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts), "exactly the configured number of attempts")
	assert.Equal(t, StateDisconnected, tr.State())
}

func TestClose_IsIdempotentAndSafeBeforeConnect(t *testing.T) {
	tr := New(Options{URL: "ws://localhost:1/ws"}, nil)
	tr.Close()
	tr.Close()

	err := tr.Connect(context.Background())
	assert.Error(t, err, "connect after close must be rejected")
}

// A redial handshake that completes while Close is tearing the transport
// down must be discarded: starting pumps on it would leave readPump alive
// with nobody to stop it, and Close would wait on t.done forever.
func TestClose_DuringRedialDiscardsLateHandshake(t *testing.T) {
	var dials int32
	gate := make(chan struct{})
	conns := make(chan *websocket.Conn, 2)

	r := chi.NewRouter()
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt32(&dials, 1) > 1 {
			<-gate // hold the redial handshake open until Close has fired
		}
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		conns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	// This net dialer ignores cancellation, so the in-flight handshake can
	// still complete after the context is canceled.
	dialer := &websocket.Dialer{
		NetDialContext: func(_ context.Context, network, addr string) (net.Conn, error) {
			return net.Dial(network, addr)
		},
	}

	tr := New(Options{
		URL:              "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		RoomID:           "room-1",
		UserID:           "user-a",
		ReconnectInitial: 5 * time.Millisecond,
		ReconnectMax:     10 * time.Millisecond,
		Dialer:           dialer,
	}, nil)

	require.NoError(t, tr.Connect(context.Background()))
	first := <-conns

	// Kill the live conn so the supervisor starts redialing into the gate.
	require.NoError(t, first.Close())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&dials) >= 2
	}, 2*time.Second, 5*time.Millisecond, "the supervisor should be blocked in the redial")

	closed := make(chan struct{})
	go func() {
		tr.Close()
		close(closed)
	}()
	time.Sleep(20 * time.Millisecond) // let the cancel land first
	close(gate)                       // now let the handshake finish

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close deadlocked waiting for the supervisor")
	}
	assert.Equal(t, StateDisconnected, tr.State(), "a late handshake must not resurrect the connection")
}

func TestClose_StopsTheSupervisor(t *testing.T) {
	ws := newWSServer(t)
	tr := New(Options{URL: ws.url(), RoomID: "room-1", UserID: "user-a"}, nil)
	require.NoError(t, tr.Connect(context.Background()))

	tr.Close()
	assert.Equal(t, StateDisconnected, tr.State())

	// No redial after a deliberate close.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, ws.dialCount())
}
