package sink

import (
	"bufio"
	"io"

	"github.com/ttxfromts/ttxcore/internal/teletext"
)

// blankLine is a field-padding placeholder: 40 zero bytes, matching the
// "blank packet = 42 zero bytes" convention of spec.md §6 (its first two
// clock-run-in bytes are never written by this sink, consistent with
// T42Sink's line-only output).
var blankLine [40]byte

// StdOutSink is T42Sink's line format targeted at a live stream (typically
// os.Stdout) instead of a file, with field-cadence padding: spec.md §6 notes
// downstream inserters expect a continuous cadence of fieldLines lines per
// field, so a partial field left at Close time is padded out with blank
// lines rather than ending mid-field.
type StdOutSink struct {
	w              *bufio.Writer
	linesThisField int
}

// NewStdOutSink wraps w (normally os.Stdout) for field-cadence streaming.
func NewStdOutSink(w io.Writer) *StdOutSink {
	return &StdOutSink{w: bufio.NewWriter(w)}
}

// WritePacket writes one 40-byte line and advances the field-line counter.
func (s *StdOutSink) WritePacket(p teletext.RawPacket) error {
	if _, err := s.w.Write(p[2:42]); err != nil {
		return err
	}
	s.linesThisField = (s.linesThisField + 1) % fieldLines
	return nil
}

// Close pads any partially-filled field with blank lines, flushes, and
// releases any buffered state.
func (s *StdOutSink) Close() error {
	for s.linesThisField != 0 {
		if _, err := s.w.Write(blankLine[:]); err != nil {
			return err
		}
		s.linesThisField = (s.linesThisField + 1) % fieldLines
	}
	return s.w.Flush()
}
