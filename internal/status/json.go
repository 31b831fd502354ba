package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Power         string     `json:"power"`
	Phase         string     `json:"phase"`
	PhaseSince    string     `json:"phase_since"`
	RemainingMs   int64      `json:"remaining_ms"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"transition_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	Red     int `json:"red"`
	Yellow  int `json:"yellow"`
	Green   int `json:"green"`
	Arms    int `json:"arms"`
	Disarms int `json:"disarms"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip        string `json:"chip"`
	PinRed      int    `json:"pin_red"`
	PinYellow   int    `json:"pin_yellow"`
	PinGreen    int    `json:"pin_green"`
	ControlPath string `json:"control_path,omitempty"`
	Broker      string `json:"broker,omitempty"`
	HTTPAddr    string `json:"http_addr,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.Phase)
	if phase == "" {
		phase = "OFF"
	}
	power := "0"
	if snap.Powered {
		power = "1"
	}

	return StatusInner{
		Power:         power,
		Phase:         phase,
		PhaseSince:    snap.PhaseSince.UTC().Format(time.RFC3339),
		RemainingMs:   snap.Remaining().Milliseconds(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Red:     snap.Counts.Red,
			Yellow:  snap.Counts.Yellow,
			Green:   snap.Counts.Green,
			Arms:    snap.Counts.Arms,
			Disarms: snap.Counts.Disarms,
		},
		Config: ConfigJSON{
			Chip:        snap.Config.Chip,
			PinRed:      snap.Config.PinRed,
			PinYellow:   snap.Config.PinYellow,
			PinGreen:    snap.Config.PinGreen,
			ControlPath: snap.Config.ControlPath,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
