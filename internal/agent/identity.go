package agent

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// Identity names this agent to the broker. Fixed for the life of the process.
type Identity struct {
	// DeviceID is stable across restarts and appears in topics and payloads.
	DeviceID string
	// ConnectionID is unique per process so two sessions never collide on
	// the broker.
	ConnectionID string
}

// NewIdentity derives the connection id from deviceID, the hostname and a
// random suffix: <device>-<host>-<6 hex>.
func NewIdentity(deviceID string) Identity {
	host, err := os.Hostname()
	if err != nil {
		host = ""
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return newIdentity(deviceID, host, suffix)
}

func newIdentity(deviceID, host, suffix string) Identity {
	parts := []string{deviceID}
	if h := sanitizeHost(host); h != "" {
		parts = append(parts, h)
	}
	parts = append(parts, suffix)
	return Identity{DeviceID: deviceID, ConnectionID: strings.Join(parts, "-")}
}

// sanitizeHost keeps the first label of host and replaces anything outside
// [A-Za-z0-9_] with '-'.
func sanitizeHost(host string) string {
	host, _, _ = strings.Cut(strings.TrimSpace(host), ".")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '-'
	}, host)
}
