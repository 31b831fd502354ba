// Package mqtt provides MQTT publishing and the power command topic, with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
)

// Topics.
const (
	// TopicEvents carries every phase change.
	TopicEvents = "traffic/light/events"
	// TopicSystem carries lifecycle events (startup, shutdown, offline).
	TopicSystem = "traffic/light/system"
	// TopicPower carries the retained "0"/"1" power state.
	TopicPower = "traffic/light/power"
	// TopicPowerSet accepts power writes, same text rules as the control file.
	TopicPowerSet = "traffic/light/power/set"
)

// Publisher publishes signal state to MQTT.
type Publisher interface {
	// Publish sends a phase change to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishPower sends the retained power state.
	PublishPower(on bool) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandHandler receives payloads written to TopicPowerSet.
type CommandHandler func(payload string)

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Event names used in phase payloads.
const (
	EventArm    = "ARM"
	EventPhase  = "PHASE"
	EventDisarm = "DISARM"
)

// Payload represents the MQTT message payload structure.
type Payload struct {
	Light LightPayload `json:"light"`
}

// LightPayload contains the phase change details.
type LightPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	From      string `json:"from"`
	To        string `json:"to"`
	DwellMs   int64  `json:"dwell_ms"`
	Power     string `json:"power"`
}

// EventName classifies a scheduler event.
func EventName(e logic.Event) string {
	switch {
	case e.To == logic.PhaseOff:
		return EventDisarm
	case e.From == logic.PhaseOff:
		return EventArm
	}
	return EventPhase
}

// ChangesPower reports whether e armed or disarmed the cycle.
func ChangesPower(e logic.Event) bool {
	return e.PowerChanged()
}

// FormatPayload creates the JSON payload for a phase change.
func FormatPayload(event logic.Event) ([]byte, error) {
	power := "0"
	if event.Powered {
		power = "1"
	}
	payload := Payload{
		Light: LightPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			Event:     EventName(event),
			From:      string(event.From),
			To:        string(event.To),
			DwellMs:   event.Dwell.Milliseconds(),
			Power:     power,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// FormatPowerPayload renders the retained power state.
func FormatPowerPayload(on bool) []byte {
	if on {
		return []byte("1")
	}
	return []byte("0")
}
