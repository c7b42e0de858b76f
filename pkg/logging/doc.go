// Package logging builds the structured loggers used across inspectd.
//
// It wraps log/slog so every component logs with the same level, format and
// destination. Components accept a *slog.Logger in their options; a nil
// logger is replaced with Nop.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//	logger.Info("session loaded", "session", name, "exchanges", n)
//
// When Config.File is set, records are written both to Output and to the
// file through a fan-out handler.
package logging
