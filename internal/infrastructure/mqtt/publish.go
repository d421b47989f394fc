package mqtt

import "fmt"

// maxPayloadSize caps outbound frames at 1 MB, matching the HTTP ingest
// body limit and typical broker defaults.
const maxPayloadSize = 1 << 20

// checkTopicQoS validates the topic and QoS arguments shared by the
// publish and subscribe paths.
func checkTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// Publish sends payload to topic and waits for the broker to
// acknowledge it.
//
// QoS picks the delivery contract: 0 is fire and forget, 1 guarantees
// delivery but may duplicate, 2 guarantees exactly-once at higher cost.
// Retained messages are stored by the broker and handed to new
// subscribers immediately; use them for status topics, never for live
// telemetry frames, where a stale retained frame would masquerade as a
// fresh reading.
//
// Parameters:
//   - topic: Destination topic (e.g. "station/telemetry/scalar/bench-01")
//   - payload: Message body, at most 1 MB
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker keeps the message for new subscribers
//
// Returns:
//   - error: nil on success, or a wrapped sentinel describing the failure
//
// Example:
//
//	topic := mqtt.Topics{}.TelemetryScalar("bench-01")
//	err := client.Publish(topic, []byte(`{"temp_c":21.4}`), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	return waitToken(token, ackTimeout, ErrPublishFailed)
}

// PublishString publishes a string payload. Equivalent to Publish with
// []byte(payload).
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the configured
// default QoS. Use for state topics where a new subscriber should see
// the current value straight away.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
