package mqtt

import (
	"encoding/json"
	"fmt"
)

// Telemetry event names, matching the WebSocket event names so a frame
// carries the same identity on both transports.
const (
	EventScalarData = "scalar_data"
	EventAccelData  = "accel_data"
)

// PublishTelemetry publishes a telemetry frame to the per-device topic
// for the given event.
//
// Event names map to topics:
//   - "scalar_data" -> station/telemetry/scalar/<device_id>
//   - "accel_data"  -> station/telemetry/accel/<device_id>
//
// Frames are published with the configured default QoS and are never
// retained: a late subscriber should wait for the next frame rather
// than act on a stale one.
//
// Parameters:
//   - event: Event name ("scalar_data" or "accel_data")
//   - deviceID: Originating device identifier (topic segment)
//   - payload: Frame body, marshalled to JSON
//
// Returns:
//   - error: Validation, marshal, or publish failure
func (c *Client) PublishTelemetry(event, deviceID string, payload any) error {
	if deviceID == "" {
		return fmt.Errorf("%w: empty device id", ErrInvalidTopic)
	}

	var topic string
	switch event {
	case EventScalarData:
		topic = Topics{}.TelemetryScalar(deviceID)
	case EventAccelData:
		topic = Topics{}.TelemetryAccel(deviceID)
	default:
		return fmt.Errorf("%w: unknown telemetry event %q", ErrPublishFailed, event)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal %s frame: %w", ErrPublishFailed, event, err)
	}

	return c.Publish(topic, body, byte(c.cfg.QoS), false)
}
