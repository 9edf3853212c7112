// Package psi implements a pre-pass Program Association/Map Table scan that
// resolves a DVB Service Identifier to its teletext elementary stream PID,
// per spec.md §6's SID selection mode (SPEC_FULL.md §4.11).
package psi

import (
	"errors"
	"fmt"
	"io"

	"github.com/ttxfromts/ttxcore/internal/tsreader"
)

const (
	pidPAT = 0x0000

	streamTypePrivateDataPES = 0x06
	descriptorTagTeletext    = 0x56
)

// ErrSIDNotFound is returned when the requested service identifier does not
// appear in the stream's PAT (exit code 6).
var ErrSIDNotFound = errors.New("psi: SID not found in PAT")

// ErrTeletextPIDNotFound is returned when the resolved PMT carries no
// teletext elementary stream (exit code 7).
var ErrTeletextPIDNotFound = errors.New("psi: teletext PID not found in PMT")

// ErrNotTransportStream is returned when the input never produces a single
// valid TS packet.
var ErrNotTransportStream = errors.New("psi: input is not a valid transport stream")

// resolveState tracks the scan's progress across the two sections it needs.
type resolveState struct {
	sid      uint16
	sections *sectionAccumulator
	pmtPID   uint16
	pmtFound bool
}

// ResolvePID scans r from its current position for a PAT identifying sid,
// then for that program's PMT, and returns the PID of its teletext
// elementary stream (stream_type 0x06 carrying descriptor_tag 0x56). It does
// not rewind r; callers must Seek back to the start themselves (r.Seek(0,
// io.SeekStart)) before beginning the real decode pass (spec.md §6). Callers
// fed a non-seekable source (e.g. stdin) must buffer it into a
// *bytes.Reader first.
func ResolvePID(r io.ReadSeeker, sid uint16) (uint16, error) {
	reader := tsreader.New(0, true, nil)
	st := &resolveState{sid: sid, sections: newSectionAccumulator()}
	readChunk := make([]byte, 64*1024)

	for {
		n, err := r.Read(readChunk)
		if n > 0 {
			for _, pkt := range reader.Push(readChunk[:n]) {
				if pid, teletextErr, done := st.handle(pkt); done {
					return pid, teletextErr
				}
			}
		}
		if err != nil {
			break
		}
	}
	for _, pkt := range reader.Flush() {
		if pid, teletextErr, done := st.handle(pkt); done {
			return pid, teletextErr
		}
	}

	// EOF without a second section-start to confirm completion: try
	// whatever was buffered as a last-ditch best effort before giving up.
	if !st.pmtFound {
		if payload, ok := st.sections.forceFlush(pidPAT); ok {
			if pat, err := parsePATSection(payload); err == nil {
				for _, prog := range pat.Programs {
					if prog.ProgramNumber == sid {
						st.pmtPID = prog.ProgramMapID
						st.pmtFound = true
					}
				}
			}
		}
	}
	if st.pmtFound {
		if payload, ok := st.sections.forceFlush(st.pmtPID); ok {
			if pmt, err := parsePMTSection(payload); err == nil {
				if pid, ok := pmt.teletextPID(); ok {
					return pid, nil
				}
				return 0, ErrTeletextPIDNotFound
			}
		}
	}

	if reader.Received == 0 {
		return 0, ErrNotTransportStream
	}
	if !st.pmtFound {
		return 0, ErrSIDNotFound
	}
	return 0, ErrTeletextPIDNotFound
}

// handle feeds one TS packet into the scan. done is true once ResolvePID
// should return (either a resolved PID or a terminal teletextErr).
func (st *resolveState) handle(pkt tsreader.Packet) (pid uint16, teletextErr error, done bool) {
	if pkt.PID != pidPAT && (!st.pmtFound || pkt.PID != st.pmtPID) {
		return 0, nil, false
	}
	payload, complete := st.sections.add(pkt)
	if !complete {
		return 0, nil, false
	}

	if pkt.PID == pidPAT {
		pat, err := parsePATSection(payload)
		if err != nil {
			return 0, nil, false
		}
		for _, prog := range pat.Programs {
			if prog.ProgramNumber == st.sid {
				st.pmtPID = prog.ProgramMapID
				st.pmtFound = true
			}
		}
		return 0, nil, false
	}

	pmt, err := parsePMTSection(payload)
	if err != nil {
		return 0, nil, false
	}
	if found, ok := pmt.teletextPID(); ok {
		return found, nil, true
	}
	return 0, ErrTeletextPIDNotFound, true
}

// patProgram is a single PAT entry.
type patProgram struct {
	ProgramNumber uint16
	ProgramMapID  uint16
}

type patSection struct {
	Programs []patProgram
}

type pmtElementaryStream struct {
	StreamType    byte
	ElementaryPID uint16
	Descriptors   []byte // raw ES-info descriptor loop bytes
}

type pmtSection struct {
	ElementaryStreams []pmtElementaryStream
}

// teletextPID returns the first elementary stream whose stream_type is
// PrivateDataPES and whose descriptor loop carries a teletext descriptor
// (spec.md §6).
func (pmt *pmtSection) teletextPID() (uint16, bool) {
	for _, es := range pmt.ElementaryStreams {
		if es.StreamType != streamTypePrivateDataPES {
			continue
		}
		if hasDescriptorTag(es.Descriptors, descriptorTagTeletext) {
			return es.ElementaryPID, true
		}
	}
	return 0, false
}

func hasDescriptorTag(descriptors []byte, tag byte) bool {
	for i := 0; i+2 <= len(descriptors); {
		descTag := descriptors[i]
		descLen := int(descriptors[i+1])
		if descTag == tag {
			return true
		}
		i += 2 + descLen
	}
	return false
}

// parsePATSection parses and CRC-verifies a complete PAT section (including
// its pointer_field byte).
func parsePATSection(data []byte) (*patSection, error) {
	data, err := stripPointerField(data)
	if err != nil {
		return nil, err
	}
	if len(data) < 12 {
		return nil, fmt.Errorf("psi: PAT section too short")
	}

	sectionLength := int(data[1]&0x0F)<<8 | int(data[2])
	sectionEnd := 3 + sectionLength
	if sectionEnd > len(data) {
		sectionEnd = len(data)
	}
	data = data[:sectionEnd] // drop trailing stuffing bytes before CRC check

	if err := verifyCRC32(data); err != nil {
		return nil, fmt.Errorf("psi: PAT %w", err)
	}

	entryStart := 8
	entryEnd := sectionEnd - 4

	pat := &patSection{}
	for i := entryStart; i+4 <= entryEnd; i += 4 {
		programNumber := uint16(data[i])<<8 | uint16(data[i+1])
		pmtPID := uint16(data[i+2]&0x1F)<<8 | uint16(data[i+3])
		if programNumber == 0 {
			continue // network PID entry, not a program
		}
		pat.Programs = append(pat.Programs, patProgram{ProgramNumber: programNumber, ProgramMapID: pmtPID})
	}
	return pat, nil
}

// parsePMTSection parses and CRC-verifies a complete PMT section.
func parsePMTSection(data []byte) (*pmtSection, error) {
	data, err := stripPointerField(data)
	if err != nil {
		return nil, err
	}
	if len(data) < 16 {
		return nil, fmt.Errorf("psi: PMT section too short")
	}

	sectionLength := int(data[1]&0x0F)<<8 | int(data[2])
	sectionEnd := 3 + sectionLength
	if sectionEnd > len(data) {
		sectionEnd = len(data)
	}
	data = data[:sectionEnd] // drop trailing stuffing bytes before CRC check

	if err := verifyCRC32(data); err != nil {
		return nil, fmt.Errorf("psi: PMT %w", err)
	}

	programInfoLength := int(data[10]&0x0F)<<8 | int(data[11])
	offset := 12 + programInfoLength

	pmt := &pmtSection{}
	for offset+5 <= sectionEnd-4 {
		streamType := data[offset]
		elementaryPID := uint16(data[offset+1]&0x1F)<<8 | uint16(data[offset+2])
		esInfoLength := int(data[offset+3]&0x0F)<<8 | int(data[offset+4])

		descStart := offset + 5
		descEnd := descStart + esInfoLength
		if descEnd > len(data) {
			descEnd = len(data)
		}

		pmt.ElementaryStreams = append(pmt.ElementaryStreams, pmtElementaryStream{
			StreamType:    streamType,
			ElementaryPID: elementaryPID,
			Descriptors:   data[descStart:descEnd],
		})

		offset += 5 + esInfoLength
	}
	return pmt, nil
}

// stripPointerField removes table_id-section framing's leading
// pointer_field byte, returning the section starting at table_id.
func stripPointerField(raw []byte) ([]byte, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("psi: section payload too short")
	}
	pointerField := int(raw[0])
	offset := 1 + pointerField
	if offset >= len(raw) {
		return nil, fmt.Errorf("psi: pointer field out of range")
	}
	return raw[offset:], nil
}
