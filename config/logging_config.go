package config

import "github.com/aleybovich/carrot-amqp/logger"

// LoggingConfig defines configuration for logging behavior
type LoggingConfig struct {
	// HeartbeatLogging controls whether heartbeat frames are logged
	// Default is false to reduce log noise
	HeartbeatLogging bool

	// DisableLogging completely disables all logging when true
	// Default is false
	DisableLogging bool

	// CustomLogger allows providing a custom logger implementation
	// Cannot be used together with DisableLogging
	CustomLogger logger.Logger
}

// Validate ensures the logging configuration is consistent
func (lc LoggingConfig) Validate() error {
	if lc.DisableLogging && lc.CustomLogger != nil {
		return errLoggingConflict
	}
	return nil
}

// Logger returns the logger selected by the configuration, or fallback if none is set
func (lc LoggingConfig) Logger(fallback logger.Logger) logger.Logger {
	switch {
	case lc.DisableLogging:
		return &logger.NilLogger{}
	case lc.CustomLogger != nil:
		return lc.CustomLogger
	default:
		return fallback
	}
}
