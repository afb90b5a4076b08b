// Package host defines the identity of a backend endpoint in the ring:
// hostname, port, rack, data-center, and its token assignment.
package host

import "fmt"

// Host is a backend endpoint identity. Hosts are value-compared by
// (Hostname, Port); Rack, DC and Token participate in selection but not
// in identity.
type Host struct {
	Hostname string
	Port     int
	Rack     string
	DC       string
	Token    uint64
}

// Key is the comparable map key for a Host, usable directly as a map key
// (the membership map is keyed by this, never by *Host).
type Key struct {
	Hostname string
	Port     int
}

// Key returns h's identity key.
func (h Host) Key() Key {
	return Key{Hostname: h.Hostname, Port: h.Port}
}

// WithPort returns a copy of h with Port set to p. Used by the orchestrator
// to stamp the configured port onto hosts coming from the supplier
// (spec.md §4.G.3 step 1).
func (h Host) WithPort(p int) Host {
	h.Port = p
	return h
}

// String renders "hostname:port" for logging.
func (h Host) String() string {
	return fmt.Sprintf("%s:%d", h.Hostname, h.Port)
}

// SameRack reports whether h and other share a rack.
func (h Host) SameRack(other Host) bool {
	return h.Rack != "" && h.Rack == other.Rack
}

// SameDC reports whether h and other share a data-center.
func (h Host) SameDC(other Host) bool {
	return h.DC != "" && h.DC == other.DC
}
