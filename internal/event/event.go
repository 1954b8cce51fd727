package event

import (
	"bytes"
	"encoding/json"
	"time"
)

type Kind string

const (
	KindState    Kind = "state"
	KindSent     Kind = "sent"
	KindReceived Kind = "received"
	KindRound    Kind = "round"
)

// Exchange is one observable step of a role: a state transition, a send or
// a receive. Round is 1-based.
type Exchange struct {
	Timestamp int64  `json:"timestamp"`
	PID       int    `json:"pid"`
	Role      string `json:"role"`
	Round     int    `json:"round"`
	Kind      Kind   `json:"kind"`
	State     string `json:"state,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
	Payload   []byte `json:"-"`
}

func (e Exchange) String() string {
	m := map[string]any{
		"timestamp": e.Timestamp,
		"pid":       e.PID,
		"role":      e.Role,
		"round":     e.Round,
		"kind":      e.Kind,
	}
	if e.State != "" {
		m["state"] = e.State
	}
	if e.Kind == KindSent || e.Kind == KindReceived {
		m["bytes"] = e.Bytes
		m["payload"] = e.PayloadString()
	}

	b, _ := json.Marshal(m)
	return string(b)
}

// PayloadString returns the payload without its NUL terminator.
func (e Exchange) PayloadString() string {
	return string(bytes.TrimRight(e.Payload, "\x00"))
}

func (e Exchange) Time() time.Time {
	return time.Unix(0, e.Timestamp)
}
