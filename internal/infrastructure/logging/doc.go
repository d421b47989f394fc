// Package logging builds the station's structured logger.
//
// It wraps log/slog rather than replacing it: handler setup, the
// service and version default fields, and sink selection live here,
// and everything else is slog's own API promoted through the wrapper.
//
// The logging section of config.yaml drives the setup:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "json"   # json, text
//	  output: "stdout" # stdout, stderr, file
//	  file:
//	    path: "data/stationd.log"  # used when output is "file"
//
// JSON output suits production scraping; text reads better during
// development. The file sink appends and never rotates; rotation
// belongs to logrotate or the init system.
//
// Subsystems take a child logger tagged with their component name:
//
//	logger := logging.New(cfg.Logging, version)
//	writer := logger.With("component", "batch_writer")
//	writer.Info("flush complete", "rows", 512)
//
// Never log secrets, tokens, passwords, or API keys; when an
// identifier is unavoidable, log a redacted prefix, never the value.
package logging
