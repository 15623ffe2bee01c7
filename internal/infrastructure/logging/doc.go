// Package logging provides structured logging for the sensor node.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and a "component" attribute.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("delivery").Info("connected", "url", url)
//
// Never log the delivery token or MQTT password.
package logging
