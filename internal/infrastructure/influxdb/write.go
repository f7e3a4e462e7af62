package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementCommand   = "webos_command"
	MeasurementState     = "webos_state"
	MeasurementSession   = "webos_session"
	MeasurementDiscovery = "webos_discovery"
)

// WriteCommandMetric records the outcome and round-trip latency of one
// command sent to a television.
//
// Parameters:
//   - deviceID: Television identifier
//   - command: Bridge command name or SSAP URI
//   - latency: Time from dispatch to response (or failure)
//   - outcome: "ok", "timeout", "device_error", ...
func (c *Client) WriteCommandMetric(deviceID, command string, latency time.Duration, outcome string) {
	c.writePoint(MeasurementCommand,
		map[string]string{
			"device_id": deviceID,
			"command":   command,
			"outcome":   outcome,
		},
		map[string]any{
			"latency_ms": float64(latency.Microseconds()) / 1000,
		},
		time.Now(),
	)
}

// WriteVolume records the reported volume level and mute flag.
func (c *Client) WriteVolume(deviceID string, volume int, muted bool) {
	c.writePoint(MeasurementState,
		map[string]string{"device_id": deviceID},
		map[string]any{
			"volume": volume,
			"muted":  muted,
		},
		time.Now(),
	)
}

// WriteSessionState records a session state transition
// (disconnected, connecting, connected, disconnecting).
func (c *Client) WriteSessionState(deviceID, state string) {
	c.writePoint(MeasurementSession,
		map[string]string{"device_id": deviceID},
		map[string]any{"state": state},
		time.Now(),
	)
}

// WriteDiscovery records that discovery found a television.
func (c *Client) WriteDiscovery(deviceID, address, model string) {
	c.writePoint(MeasurementDiscovery,
		map[string]string{
			"device_id": deviceID,
			"model":     model,
		},
		map[string]any{"address": address},
		time.Now(),
	)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(measurement, tags, fields, time.Now())
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
