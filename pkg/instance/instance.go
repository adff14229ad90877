// Package instance names the running process in logs and lock ownership.
package instance

import (
	"os"
	"strings"
)

var envKeys = []string{"DEVICEHUB_INSTANCE_ID", "DYNO", "HOSTNAME"}

// ID returns the first non-empty instance identifier from the environment,
// falling back to "<service>-local".
func ID(service string) string {
	return resolve(os.Getenv, service)
}

func resolve(getenv func(string) string, service string) string {
	for _, key := range envKeys {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
	}
	if service == "" {
		service = "devicehub"
	}
	return service + "-local"
}
