package psi

import "github.com/ttxfromts/ttxcore/internal/tsreader"

// sectionAccumulator reassembles PSI sections from PID-filtered TS packet
// payloads, grounded on internal/mpegts/accumulator.go's packetAccumulator/
// packetPool pattern. Simplified for a best-effort pre-pass scan: it does not
// track continuity counters, since a dropped packet here only costs a retry
// on the next occurrence of the same table rather than corrupting a decode.
type sectionAccumulator struct {
	buffers map[uint16][]byte
}

func newSectionAccumulator() *sectionAccumulator {
	return &sectionAccumulator{buffers: make(map[uint16][]byte)}
}

// add feeds one packet's payload into its PID's buffer. On
// PayloadUnitStartIndicator with an already-buffered section, the prior
// buffer is returned complete and replaced with the new packet's payload;
// otherwise the payload is appended and complete is false.
func (s *sectionAccumulator) add(pkt tsreader.Packet) (payload []byte, complete bool) {
	if len(pkt.Payload) == 0 {
		return nil, false
	}

	if pkt.PayloadUnitStart {
		prev := s.buffers[pkt.PID]
		s.buffers[pkt.PID] = append([]byte(nil), pkt.Payload...)
		if len(prev) > 0 {
			return prev, true
		}
		return nil, false
	}

	s.buffers[pkt.PID] = append(s.buffers[pkt.PID], pkt.Payload...)
	return nil, false
}

// forceFlush returns whatever is buffered for pid without waiting for a
// second section start, for end-of-stream best-effort recovery.
func (s *sectionAccumulator) forceFlush(pid uint16) ([]byte, bool) {
	buf, ok := s.buffers[pid]
	if !ok || len(buf) == 0 {
		return nil, false
	}
	return buf, true
}
