// Package logging provides structured logging for the Gray Logic webOS bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the bridge, the discovery listener
// and the operator CLI.
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
//	logger := logging.New(cfg.Logging, "1.0.0")
//	tv := logger.WithDevice("living-room")
//	tv.Info("session connected", "address", "192.168.1.50")
//
// # Security
//
// Pairing keys are credentials. Log them only through RedactKey:
//
//	logger.Info("pairing key issued", "key_prefix", logging.RedactKey(key))
package logging
