// Package env reads process settings that must be known before the envconfig
// tree is loaded.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces every DeviceHub variable.
const Prefix = "DEVICEHUB_"

// Get returns DEVICEHUB_<key>, then the bare <key>, then fallback. Values are
// trimmed and blank values are treated as unset.
func Get(key, fallback string) string {
	return lookup(os.Getenv, key, fallback)
}

func lookup(getenv func(string) string, key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
	}
	return fallback
}
