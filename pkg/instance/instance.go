package instance

import "os"

// EnvInstanceID overrides the detected instance identifier.
const EnvInstanceID = "CARTSTORE_INSTANCE_ID"

// GetID returns the process instance identifier used in logs. It prefers the
// explicit override, then the platform dyno name, then the hostname.
func GetID() string {
	for _, key := range []string{EnvInstanceID, "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
