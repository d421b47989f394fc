package mqtt

import "errors"

// Sentinel errors for broker operations. Failures coming out of paho are
// wrapped with one of these so callers can branch with errors.Is without
// depending on paho's error text.
var (
	// ErrNotConnected rejects operations while the broker session is
	// down. Auto-reconnect may restore the session, so callers should
	// treat this as transient.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed reports that the initial connect handshake
	// did not complete.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps broker and timeout failures on publish,
	// including oversized payloads rejected before they reach the wire.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps broker and timeout failures on subscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed wraps broker and timeout failures on unsubscribe.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects empty topics and empty topic segments.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
