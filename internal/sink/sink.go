// Package sink adapts the decoded teletext stream to the output formats a
// caller of cmd/ttxdump may request: raw packet dumps, a live WebSocket
// broadcast, or a vbit2-style TTI page archive. The core decoder never
// imports this package; sinks are wired in by the CLI layer only.
package sink

import "github.com/ttxfromts/ttxcore/internal/teletext"

// PacketSink receives raw teletext packets as they are extracted, in
// arrival order.
type PacketSink interface {
	WritePacket(p teletext.RawPacket) error
	Close() error
}

// PageSink receives the finalised Service model after flush.
type PageSink interface {
	WriteService(s *teletext.Service) error
}
