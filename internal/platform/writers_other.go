//go:build unix && !linux

package platform

// DefaultWriters returns nil: there is no portable way to enumerate other
// processes' open descriptors here, so copy detection relies on the settle
// interval alone.
func DefaultWriters() WriterSource {
	return nil
}
