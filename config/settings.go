package config

import (
	"strconv"
	"strings"
	"time"
)

// Settings is the key/value provider consulted for router, SNMP and RADIUS defaults
type Settings interface {
	Get(key, defaultValue string) string
}

// MapSettings is a Settings backed by a plain map
type MapSettings map[string]string

// Get returns the value for key, or defaultValue when absent or blank
func (m MapSettings) Get(key, defaultValue string) string {
	if m == nil {
		return defaultValue
	}
	if value, ok := m[key]; ok && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

// GetInt reads an integer setting. Unparseable values fall back to defaultValue.
func GetInt(s Settings, key string, defaultValue int) int {
	raw := s.Get(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetDuration reads a duration setting such as "5s".
// A bare integer is taken as seconds.
func GetDuration(s Settings, key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(s.Get(key, ""))
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

// GetBool reads a boolean setting ("true", "1", "yes", "on")
func GetBool(s Settings, key string, defaultValue bool) bool {
	raw := strings.ToLower(strings.TrimSpace(s.Get(key, "")))
	switch raw {
	case "":
		return defaultValue
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// First returns the first key present in settings, checked in order
func First(s Settings, defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := s.Get(key, ""); value != "" {
			return value
		}
	}
	return defaultValue
}
