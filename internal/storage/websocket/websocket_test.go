package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/evacsim/internal/storage"
	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/OCAP2/evacsim/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for start_run/end_run.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartRun || env.Type == streaming.TypeEndRun {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secret   string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) getSecret() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndRun(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(&core.Run{ID: "run-1", PanicMode: "calm"}))
	require.NoError(t, b.EndRun(core.RunReport{TotalEpisodes: 2, SuccessRate: 50}))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartRun, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndRun, msgs[len(msgs)-1].Type)
	assert.Equal(t, "test", ml.getSecret())

	var end streaming.EndRunPayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &end))
	assert.Equal(t, "run-1", end.RunID)
	assert.Equal(t, 50.0, end.Report.SuccessRate)
	assert.Nil(t, b.conn.replayMsg())
	assert.Zero(t, b.Dropped())
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(&core.Run{ID: "run-2"}))
	require.NoError(t, b.RecordOutcome(&core.Outcome{Kind: core.OutcomeEscape, OccupantID: 1}))
	require.NoError(t, b.RecordSnapshot(&core.PopulationSnapshot{Episode: 1, Alive: 4}))
	require.NoError(t, b.RecordEpisode(&core.EpisodeSummary{ID: "ep-1", Index: 1}))
	require.NoError(t, b.EndRun(core.RunReport{}))
	assert.Equal(t, uint64(5), b.Sent())

	// Give a moment for all messages to arrive at server.
	assert.Eventually(t, func() bool { return len(ml.all()) >= 5 }, time.Second, 10*time.Millisecond)

	types := make(map[string]int)
	for _, m := range ml.all() {
		types[m.Type]++
	}

	assert.Equal(t, 1, types[streaming.TypeStartRun])
	assert.Equal(t, 1, types[streaming.TypeEndRun])
	assert.Equal(t, 1, types[streaming.TypeOutcome])
	assert.Equal(t, 1, types[streaming.TypeSnapshot])
	assert.Equal(t, 1, types[streaming.TypeEpisode])
}

func TestInit_DialFailure(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/api"})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestHTTPToWS(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:5000", "ws://localhost:5000"},
		{"https://results.example.org/", "wss://results.example.org"},
		{"ws://already", "ws://already"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPToWS(tt.in))
	}
}

func TestMarshalEnvelope(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeOutcome, core.Outcome{OccupantID: 9})
	require.NoError(t, err)

	var o core.Outcome
	typ, err := streaming.Decode(data, &o)
	require.NoError(t, err)
	assert.Equal(t, streaming.TypeOutcome, typ)
	assert.Equal(t, core.EntityID(9), o.OccupantID)

	_, err = marshalEnvelope(streaming.TypeOutcome, func() {})
	assert.Error(t, err)
}

func TestReconnect_ReplaysStartRun(t *testing.T) {
	var (
		mu    sync.Mutex
		conns [][]string // message types per server-side connection
	)
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		mu.Lock()
		idx := len(conns)
		conns = append(conns, nil)
		mu.Unlock()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if json.Unmarshal(msg, &env) != nil {
				continue
			}
			mu.Lock()
			conns[idx] = append(conns[idx], env.Type)
			mu.Unlock()

			if env.Type == streaming.TypeStartRun {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				_ = c.WriteMessage(ws.TextMessage, data)
				if idx == 0 {
					return // drop the first client right after the run started
				}
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()
	require.NoError(t, b.StartRun(&core.Run{ID: "run-r"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(conns) == 2 && len(conns[1]) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, streaming.TypeStartRun, conns[1][0])
}
