package teletext

import (
	"fmt"

	"github.com/ttxfromts/ttxcore/internal/bitcodec"
)

// NewMagazine creates an empty magazine with the given 1..8 number.
func NewMagazine(number int) *Magazine {
	return &Magazine{Number: number, Carousels: make(map[string]*Carousel)}
}

// AddPacket routes one typed packet already known to belong to this
// magazine (spec.md §4.8).
func (m *Magazine) AddPacket(p Packet) {
	switch p.Type {
	case TypeHeader:
		m.CommitCurrent()
		page := NewPage(m.Number)
		page.AddPacket(p)
		m.current = page
	case TypeMagazineEnhancements:
		m.storeMagazineEnhancement(p)
	default:
		if m.current != nil {
			m.current.AddPacket(p)
		}
	}
}

// SerialHeaderReceived is called by the ServiceDecoder on any header from
// another magazine while the service is in serial-transmission mode: rows
// for this magazine stream in until any other magazine's header arrives.
func (m *Magazine) SerialHeaderReceived() {
	m.CommitCurrent()
}

// CommitCurrent closes out the page under assembly, running MOT/TOP table
// decoding first for the reserved "FE"/"F0" page numbers, then inserting
// the page into its carousel. Time-filler pages ("FF") are discarded.
func (m *Magazine) CommitCurrent() {
	page := m.current
	if page == nil {
		return
	}
	m.current = nil

	switch page.Number {
	case "FF":
		return
	case "FE":
		m.decodeMOT(page)
	case "F0":
		m.decodeTOPBTT(page)
	}

	carousel, ok := m.Carousels[page.Number]
	if !ok {
		carousel = &Carousel{Number: page.Number}
		m.Carousels[page.Number] = carousel
	}
	carousel.AddPage(page)
}

// storeMagazineEnhancement handles an X/29 packet, which is addressed to
// the magazine directly rather than to the page under assembly.
func (m *Magazine) storeMagazineEnhancement(p Packet) {
	n := bitcodec.Hamming84(p.Data[0])
	if n == bitcodec.HammingSentinel || int(n) > 4 {
		return
	}
	var triplet [37]byte
	copy(triplet[:], p.Data[1:38])
	m.EnhancementData[n] = &triplet
}

// decodeMOTLink decodes a 3-byte (magazine, tens, units) link record
// starting at offset within a 38-byte row. It returns the full page
// reference (magazine digit + "XY") and false if any field failed to
// decode, or if the decoded number is the "FF" time-filler/sentinel value.
func decodeMOTLink(row [38]byte, offset int) (string, bool) {
	magN := bitcodec.Hamming84(row[offset])
	tensN := bitcodec.Hamming84(row[offset+1])
	unitsN := bitcodec.Hamming84(row[offset+2])
	if magN == bitcodec.HammingSentinel || tensN == bitcodec.HammingSentinel || unitsN == bitcodec.HammingSentinel {
		return "", false
	}
	number := fmt.Sprintf("%X%X", tensN, unitsN)
	if number == "FF" {
		return "", false
	}
	magDigit := int(magN & 0x07)
	if magDigit == 0 {
		magDigit = 8
	}
	return magazinePrefix(magDigit) + number, true
}

// decodeMOT walks the Magazine Organisation Table rows of a committed "FE"
// page (ETS 300 706 §10.6). Missing rows are tolerated silently (spec.md's
// open question on row 19/20/22/23 availability).
func (m *Magazine) decodeMOT(page *Page) {
	objectRows := [4]int{19, 20, 22, 23}
	for _, rowIdx := range objectRows {
		row := page.Rows[rowIdx]
		if row == nil {
			continue
		}
		for i := 0; i < 4; i++ {
			link, ok := decodeMOTLink(*row, i*10)
			if !ok {
				continue
			}
			if i == 0 {
				m.Top.GPOP = link
			} else {
				m.Top.POP = append(m.Top.POP, link)
			}
		}
	}

	drcsRows := [2]int{21, 24}
	for _, rowIdx := range drcsRows {
		row := page.Rows[rowIdx]
		if row == nil {
			continue
		}
		for i := 0; i < 8; i++ {
			link, ok := decodeMOTLink(*row, i*4)
			if !ok {
				continue
			}
			if i == 0 {
				m.Top.GDRCS = link
			} else {
				m.Top.DRCS = append(m.Top.DRCS, link)
			}
		}
	}
}

// decodeTOPBTT walks the Basic TOP Table rows of a committed "F0" page (ETS
// 300 706 §11.2). The fifth 8-byte record's type nibble at offset+7 falls
// outside the 38-byte row for every row this walks; such records are
// skipped rather than causing an out-of-range read.
func (m *Magazine) decodeTOPBTT(page *Page) {
	m.InitialTOPBTTSeen = true

	for _, rowIdx := range [2]int{21, 22} {
		row := page.Rows[rowIdx]
		if row == nil {
			continue
		}
		for i := 0; i < 5; i++ {
			offset := i * 8
			if offset+7 >= len(row) {
				continue
			}
			magN := bitcodec.Hamming84(row[offset])
			tensN := bitcodec.Hamming84(row[offset+1])
			unitsN := bitcodec.Hamming84(row[offset+2])
			typeN := bitcodec.Hamming84(row[offset+7])
			if magN == bitcodec.HammingSentinel || tensN == bitcodec.HammingSentinel ||
				unitsN == bitcodec.HammingSentinel || typeN == bitcodec.HammingSentinel {
				continue
			}
			magDigit := int(magN & 0x07)
			if magDigit == 0 {
				magDigit = 8
			}
			link := magazinePrefix(magDigit) + fmt.Sprintf("%X%X", tensN, unitsN)
			switch typeN {
			case 1:
				m.Top.MPT = append(m.Top.MPT, link)
			case 2:
				m.Top.AIT = append(m.Top.AIT, link)
			case 3:
				m.Top.MPTEX = append(m.Top.MPTEX, link)
			}
		}
	}
}
