package proxy

import "fmt"

// Capabilities describes what the execution environment can do. The
// relevant one for a BFF is whether the runtime relays multiple
// Set-Cookie response headers intact: some edge runtimes collapse
// multi-value headers, which silently drops auth cookies on login and
// refresh responses.
type Capabilities struct {
	MultiSetCookie bool
}

// Runtime profiles accepted in configuration.
const (
	RuntimeStandard = "standard" // long-lived server process, full header fidelity
	RuntimeEdge     = "edge"     // edge/worker runtime, collapses multi-value headers
)

// ParseRuntime maps a configured runtime profile to its capabilities.
func ParseRuntime(profile string) (Capabilities, error) {
	switch profile {
	case RuntimeStandard:
		return Capabilities{MultiSetCookie: true}, nil
	case RuntimeEdge:
		return Capabilities{MultiSetCookie: false}, nil
	default:
		return Capabilities{}, fmt.Errorf("proxy: unknown runtime profile %q", profile)
	}
}
