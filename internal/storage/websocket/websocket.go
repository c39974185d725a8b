// Package websocket streams run results live to the results server.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/OCAP2/evacsim/pkg/core"
	"github.com/OCAP2/evacsim/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	Logger *slog.Logger
}

// Backend streams run data over WebSocket to the results server.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn  *connection
	cfg   Config
	runID atomic.Value // string
	sent  atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
	}
	b.runID.Store("")
	return b
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Sent reports how many messages were handed to the write loop.
func (b *Backend) Sent() uint64 { return b.sent.Load() }

// Dropped reports messages lost to a full send buffer.
func (b *Backend) Dropped() uint64 { return b.conn.dropped.Load() }

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	b.sent.Add(1)
	return nil
}

// StartRun sends the run header and waits for server ack.
func (b *Backend) StartRun(run *core.Run) error {
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{Run: run})
	if err != nil {
		return err
	}
	b.runID.Store(run.ID)

	b.conn.setReplay(data)

	b.sent.Add(1)
	return b.conn.sendAndWait(data, streaming.TypeStartRun, ackTimeout)
}

// EndRun sends the report and waits for server ack.
func (b *Backend) EndRun(report core.RunReport) error {
	data, err := marshalEnvelope(streaming.TypeEndRun, streaming.EndRunPayload{
		RunID:  b.runID.Load().(string),
		Report: report,
	})
	if err != nil {
		return err
	}
	b.sent.Add(1)
	err = b.conn.sendAndWait(data, streaming.TypeEndRun, ackTimeout)

	b.conn.setReplay(nil)
	b.runID.Store("")

	return err
}

func (b *Backend) RecordOutcome(o *core.Outcome) error {
	return b.sendEnvelope(streaming.TypeOutcome, o)
}

func (b *Backend) RecordSnapshot(s *core.PopulationSnapshot) error {
	return b.sendEnvelope(streaming.TypeSnapshot, s)
}

func (b *Backend) RecordEpisode(e *core.EpisodeSummary) error {
	return b.sendEnvelope(streaming.TypeEpisode, e)
}

// HTTPToWS converts an HTTP(S) URL to a WebSocket URL.
func HTTPToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
