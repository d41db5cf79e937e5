package config

import "fmt"

// ConfigError reports a missing credential or an invalid configuration value.
// It is the only error kind that aborts a run before any network activity.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %v", msg, e.Cause)
	}
	return "config error: " + msg
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
