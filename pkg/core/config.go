// Package core defines the contracts between the cache core and its external
// collaborators: the remote transport, object storage, and the sync driver.
package core

import "time"

// Config holds runtime settings as key-value pairs, so embedders can pass
// their own schema through without the core depending on a config file
// format.
type Config map[string]interface{}

// GetString returns a string value from the configuration.
func (c Config) GetString(key string) (string, bool) {
	val, ok := c[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt returns an int value from the configuration.
func (c Config) GetInt(key string) (int, bool) {
	val, ok := c[key]
	if !ok {
		return 0, false
	}
	// Handle both int and float64 (from JSON unmarshaling)
	switch v := val.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetBool returns a bool value from the configuration.
func (c Config) GetBool(key string) (bool, bool) {
	val, ok := c[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// GetDuration returns a duration value, accepting either a time.Duration or
// a parseable string like "30s".
func (c Config) GetDuration(key string) (time.Duration, bool) {
	val, ok := c[key]
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case time.Duration:
		return v, true
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		return d, true
	default:
		return 0, false
	}
}

// Set sets a value in the configuration.
func (c Config) Set(key string, value interface{}) {
	c[key] = value
}
