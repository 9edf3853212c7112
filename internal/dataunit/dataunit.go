// Package dataunit walks a reassembled PES payload and isolates EBU
// teletext data units (EN 300 472), producing fixed-size, bit-reversed raw
// teletext line packets (spec.md §4.4).
package dataunit

import (
	"github.com/ttxfromts/ttxcore/internal/bitcodec"
	"github.com/ttxfromts/ttxcore/internal/teletext"
)

const (
	streamIDPrivate1 = 0xBD

	dataUnitIDTeletextNonSubtitle = 0x02
	dataUnitIDTeletextSubtitle    = 0x03

	// rawPacketSize is the fixed size of a reconstructed teletext line
	// packet (spec.md §3's RawTeletextPacket).
	rawPacketSize = 42
)

// RawPacket is a 42-byte bit-reversed teletext line, ready for
// TeletextPacket parsing. It is an alias of teletext.RawPacket, the
// canonical owner of the type, since sinks consume it directly too.
type RawPacket = teletext.RawPacket

// Warner receives one-shot warnings for the recoverable error classes this
// extractor can hit: a non-teletext PES on the selected PID, an invalid
// data_identifier, and a data unit longer than the remaining PES payload.
type Warner interface {
	Warn(class, message string)
}

// WarnerFunc adapts a function to Warner.
type WarnerFunc func(class, message string)

// Warn implements Warner.
func (f WarnerFunc) Warn(class, message string) { f(class, message) }

// Extractor pulls RawPackets out of PES payloads carrying EBU teletext data
// units. It tracks one-shot warning state across calls, per spec.md §7.
type Extractor struct {
	IncludeSubtitles bool

	warn              Warner
	warnedNotTeletext bool
	warnedBadDataID   bool
	warnedTruncated   bool
}

// New creates an Extractor. warn may be nil.
func New(includeSubtitles bool, warn Warner) *Extractor {
	if warn == nil {
		warn = WarnerFunc(func(string, string) {})
	}
	return &Extractor{IncludeSubtitles: includeSubtitles, warn: warn}
}

// PESSource is the minimal view of a reassembled PES packet the extractor
// needs; internal/pes.Packet satisfies it.
type PESSource interface {
	DataOffset() int
}

// Extract walks data (the full PES buffer) and returns every teletext data
// unit's payload as a RawPacket, in order.
func (e *Extractor) Extract(streamID byte, data []byte, dataOffset int) []RawPacket {
	if streamID != streamIDPrivate1 {
		if !e.warnedNotTeletext {
			e.warnedNotTeletext = true
			e.warn.Warn("not_teletext_service", "PES stream_id is not PrivateStream1 (0xBD); not a teletext service")
		}
		return nil
	}

	if dataOffset < 0 || dataOffset >= len(data) {
		return nil
	}
	dataIdentifier := data[dataOffset]
	if dataIdentifier < 0x10 || dataIdentifier > 0x1F {
		if !e.warnedBadDataID {
			e.warnedBadDataID = true
			e.warn.Warn("bad_data_identifier", "PES data_identifier outside EBU teletext range [0x10,0x1F]")
		}
		return nil
	}

	var out []RawPacket
	pos := dataOffset + 1

	for pos+2 <= len(data) {
		unitID := data[pos]
		unitLength := int(data[pos+1])
		remaining := len(data) - (pos + 2)

		if unitLength > remaining {
			if !e.warnedTruncated {
				e.warnedTruncated = true
				e.warn.Warn("truncated_data_unit", "data_unit_length exceeds remaining PES payload")
			}
			break
		}

		if unitID == dataUnitIDTeletextNonSubtitle || (unitID == dataUnitIDTeletextSubtitle && e.IncludeSubtitles) {
			if raw, ok := toRawPacket(data[pos+2 : pos+2+unitLength]); ok {
				out = append(out, raw)
			}
		}

		pos += 2 + unitLength
	}

	return out
}

// toRawPacket takes the trailing 42 bytes of a data unit's payload (the
// leading bytes, when present, are field_parity/line_offset metadata per
// EN 300 472 — spec.md §6 notes the typical 44-byte unit is 2 metadata bytes
// plus the 42-byte line) and bit-reverses each byte.
func toRawPacket(unit []byte) (RawPacket, bool) {
	var raw RawPacket
	if len(unit) < rawPacketSize {
		return raw, false
	}
	line := unit[len(unit)-rawPacketSize:]
	for i, b := range line {
		raw[i] = bitcodec.Reverse(b)
	}
	return raw, true
}
