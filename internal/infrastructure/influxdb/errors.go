package influxdb

import "errors"

var (
	// ErrNotConnected rejects writes before Connect has succeeded or
	// after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps a refused or unhealthy first contact
	// with the server.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed tags the asynchronous write errors delivered to the
	// OnError callback; the mirror is fire-and-forget, so nothing else
	// sees them.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
