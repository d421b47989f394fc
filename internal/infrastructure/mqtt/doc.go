// Package mqtt publishes live telemetry onto an external broker.
//
// The broker is an optional fan-out path beside the WebSocket hub: each
// frame the pipeline emits is mirrored onto a per-device topic, so
// dashboards and downstream collectors can follow the station without
// speaking its HTTP API. A retained status message, backed by a Last
// Will, lets subscribers tell a quiet station from a dead one.
//
// The client wraps Eclipse Paho with auto-reconnect (exponential backoff
// with jitter), subscription replay after a reconnect, and health
// monitoring. TLS and credentials come from the config section;
// anonymous plaintext access is for local development only.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Follow live scalar frames from every device.
//	err = client.Subscribe(mqtt.Topics{}.AllScalar(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("%s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Mirror a frame the pipeline just emitted.
//	client.PublishTelemetry(mqtt.EventScalarData, "bench-01", frame)
package mqtt
