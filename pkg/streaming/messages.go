// Package streaming defines the wire messages of the live results stream.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/evacsim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun = "start_run"
	TypeEndRun   = "end_run"
	TypeOutcome  = "outcome"
	TypeSnapshot = "snapshot"
	TypeEpisode  = "episode"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload announces a run.
type StartRunPayload struct {
	Run *core.Run `json:"run"`
}

// EndRunPayload carries the aggregate report of a run.
type EndRunPayload struct {
	RunID  string         `json:"runId"`
	Report core.RunReport `json:"report"`
}

// Decode unmarshals an envelope and its payload into v.
func Decode(data []byte, v any) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	if v == nil || len(env.Payload) == 0 {
		return env.Type, nil
	}
	return env.Type, json.Unmarshal(env.Payload, v)
}
