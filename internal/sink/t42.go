package sink

import (
	"bufio"
	"io"

	"github.com/ttxfromts/ttxcore/internal/teletext"
)

// fieldLines is the number of teletext lines broadcast per field; streaming
// sinks pad short fields to this cadence with blank packets (spec.md §6).
const fieldLines = 16

// T42Sink writes the 40-byte line payload (RawPacket[2:42]) of each packet
// to w, grounded on the teacher's plain io.Writer frame emission in
// internal/demux (buildAndEmitFrame writes raw byte payloads with no further
// framing of its own).
type T42Sink struct {
	w      *bufio.Writer
	closer io.Closer // nil when w does not need closing (e.g. os.Stdout)

	linesThisField int
}

// NewT42Sink wraps w for buffered line-at-a-time writes. If w also
// implements io.Closer, Close closes it too.
func NewT42Sink(w io.Writer) *T42Sink {
	s := &T42Sink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// WritePacket writes one 40-byte line.
func (s *T42Sink) WritePacket(p teletext.RawPacket) error {
	_, err := s.w.Write(p[2:42])
	return err
}

// Close flushes buffered output and closes the underlying writer, if any.
func (s *T42Sink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
