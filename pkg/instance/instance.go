package instance

import "os"

const fallbackID = "worker-0"

// ID names the running process in lock owners and log fields. It prefers
// MLMCORE_INSTANCE_ID, then the hostname.
func ID() string {
	if id := os.Getenv("MLMCORE_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
