package mqtt

import "fmt"

// Topic prefixes for the Station Core MQTT bus.
//
// All topics use the flat scheme: station/{category}/{kind}/{id}. Telemetry
// topics carry live JSON frames; status topics carry retained online and
// offline announcements per client.
const (
	// TopicPrefix is the base for all Station Core topics.
	TopicPrefix = "station"

	// TopicPrefixTelemetry is the base for live telemetry fan-out.
	TopicPrefixTelemetry = "station/telemetry"

	// TopicPrefixStatus is the base for client status announcements.
	TopicPrefixStatus = "station/status"
)

// Topics provides builders for Station Core MQTT topics. Using these
// helpers keeps topic naming consistent between the publisher and any
// consumer.
//
//	topics := mqtt.Topics{}
//	scalarTopic := topics.TelemetryScalar("rs485-01")
//	// Returns: "station/telemetry/scalar/rs485-01"
type Topics struct{}

// TelemetryScalar returns the live scalar reading topic for a device.
//
// Example: station/telemetry/scalar/rs485-01
func (Topics) TelemetryScalar(deviceID string) string {
	return fmt.Sprintf("%s/scalar/%s", TopicPrefixTelemetry, deviceID)
}

// TelemetryAccel returns the live acceleration frame topic for a device.
//
// Example: station/telemetry/accel/vib-01
func (Topics) TelemetryAccel(deviceID string) string {
	return fmt.Sprintf("%s/accel/%s", TopicPrefixTelemetry, deviceID)
}

// Status returns the status topic for a client. Both the retained online
// announcement and the Last Will offline message use this topic.
//
// Example: station/status/station-core
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixStatus, clientID)
}

// AllTelemetry returns a pattern matching every telemetry topic.
//
// Pattern: station/telemetry/#
func (Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/#", TopicPrefixTelemetry)
}

// AllScalar returns a pattern matching scalar topics for every device.
//
// Pattern: station/telemetry/scalar/+
func (Topics) AllScalar() string {
	return fmt.Sprintf("%s/scalar/+", TopicPrefixTelemetry)
}

// AllAccel returns a pattern matching acceleration topics for every device.
//
// Pattern: station/telemetry/accel/+
func (Topics) AllAccel() string {
	return fmt.Sprintf("%s/accel/+", TopicPrefixTelemetry)
}

// AllStatus returns a pattern matching every client status topic.
//
// Pattern: station/status/+
func (Topics) AllStatus() string {
	return fmt.Sprintf("%s/+", TopicPrefixStatus)
}

// AllTopics returns a pattern matching all Station Core topics.
// Use with caution, this receives every frame the station publishes.
//
// Pattern: station/#
func (Topics) AllTopics() string {
	return "station/#"
}
