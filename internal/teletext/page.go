package teletext

import "github.com/ttxfromts/ttxcore/internal/bitcodec"

// NewPage creates an empty page owned by the given magazine, defaulting to
// an undecoded ("FF") page number and the English national option subset.
func NewPage(magazine int) *Page {
	return &Page{Magazine: magazine, Number: "FF", NationalOptionSubset: English}
}

// UsedRows reports how many of the 26 display rows have been received.
func (p *Page) UsedRows() int {
	n := 0
	for _, r := range p.Rows {
		if r != nil {
			n++
		}
	}
	return n
}

// AddPacket routes a single typed packet already known to belong to this
// page into the appropriate field (spec.md §4.6).
func (p *Page) AddPacket(pkt Packet) {
	switch pkt.Type {
	case TypeHeader:
		p.decodeHeader(pkt)
	case TypePageBody, TypeFastext, TypeTopCommentary:
		var row [38]byte
		row = pkt.Data
		p.Rows[pkt.Row] = &row
	case TypeLinkedPages:
		p.decodeLinkedPages(pkt)
	case TypePageEnhancements:
		n := bitcodec.Hamming84(pkt.Data[0])
		if n == bitcodec.HammingSentinel || int(n) > 4 {
			return
		}
		var triplet [37]byte
		copy(triplet[:], pkt.Data[1:38])
		p.EnhancementData[n] = &triplet
	default:
		// PageReplacements are decoded here. MagazineEnhancements are
		// handled by the Magazine (they aren't page-scoped at all) and
		// never reach a page; any other type is ignored.
		if pkt.Type == TypePageReplacements {
			p.decodeReplacements(pkt)
		}
	}
}

func (p *Page) decodeReplacements(pkt Packet) {
	n := bitcodec.Hamming84(pkt.Data[0])
	if n == bitcodec.HammingSentinel {
		return
	}
	var triplet [37]byte
	copy(triplet[:], pkt.Data[1:38])
	p.ReplacementData[n] = &triplet
}

// decodeHeader decodes the page header row: page number, subcode, and the
// control-byte flags (spec.md §4.6).
func (p *Page) decodeHeader(pkt Packet) {
	d := pkt.Data

	if number, ok := decodePageNumber(d[0], d[1]); ok {
		p.Number = number
	} else {
		p.Number = "FF"
	}

	subcode, _ := decodeSubcode(d[2], d[3], d[4], d[5])
	p.Subcode = subcode

	if v, ok := controlFlag(d[3], 3); ok {
		p.Erase = v
	}
	if v, ok := controlFlag(d[5], 2); ok {
		p.Newsflash = v
	}
	if v, ok := controlFlag(d[5], 3); ok {
		p.Subtitles = v
	}
	if v, ok := controlFlag(d[6], 0); ok {
		p.SuppressHeader = v
	}
	if v, ok := controlFlag(d[6], 1); ok {
		p.Update = v
	}
	if v, ok := controlFlag(d[6], 2); ok {
		p.InterruptedSequence = v
	}
	if v, ok := controlFlag(d[6], 3); ok {
		p.InhibitDisplay = v
	}

	n7 := bitcodec.Hamming84(d[7])
	if n7 != bitcodec.HammingSentinel {
		p.MagazineSerial = n7&0x01 != 0
		subset := int(n7>>3) | int((n7&0x04)>>1) | int((n7&0x02)<<1)
		if subset < 7 {
			p.NationalOptionSubset = NationalOptionSubset(subset)
		}
	}

	// The eight control bytes occupy the first 8 display positions of the
	// header row; replace them with the teletext "nothing displayed" code
	// before retaining the row.
	var row [38]byte
	for i := 0; i < 8; i++ {
		row[i] = 0x04
	}
	copy(row[8:], d[8:])
	p.Rows[0] = &row
}

// decodeLinkedPages decodes a row 27 (LinkedPages) packet: designation 0
// carries the six fastext links plus a trailing link-control byte;
// designations 4 and 5 carry enhancement link triplets (spec.md §4.7).
func (p *Page) decodeLinkedPages(pkt Packet) {
	d := pkt.Data
	designation := bitcodec.Hamming84(d[0])
	if designation == bitcodec.HammingSentinel {
		return
	}

	switch designation {
	case 0:
		p.decodeFastextLinks(pkt)
	case 4:
		var triplet [37]byte
		copy(triplet[:], d[1:38])
		p.EnhancementLinks[0] = &triplet
	case 5:
		var triplet [37]byte
		copy(triplet[:], d[1:38])
		p.EnhancementLinks[1] = &triplet
	}
}

func (p *Page) decodeFastextLinks(pkt Packet) {
	d := pkt.Data
	var links [6]Link

	for i := 0; i < 6; i++ {
		off := 1 + i*6
		number, _ := decodePageNumber(d[off], d[off+1])
		subcode, nibbles := decodeSubcode(d[off+2], d[off+3], d[off+4], d[off+5])

		s1, s3 := nibbles[1], nibbles[3]
		if s1 == bitcodec.HammingSentinel || s3 == bitcodec.HammingSentinel {
			magazine := p.Magazine
			links[i] = Link{Page: magazinePrefix(magazine) + number, Subcode: subcode}
			continue
		}

		magazineDigit := (int(s1) >> 3) | ((int(s3) & 0x0C) >> 1)
		magazineDigit ^= p.Magazine % 8
		if magazineDigit == 0 {
			magazineDigit = 8
		}
		links[i] = Link{Page: magazinePrefix(magazineDigit) + number, Subcode: subcode}
	}
	p.Links = &links

	n37 := bitcodec.Hamming84(d[37])
	if n37 != bitcodec.HammingSentinel {
		p.DisplayRow24 = n37&0x08 != 0
	}
}

// magazinePrefix formats a magazine number (1-8) as its single decimal
// digit, used as the leading character of a fastext/MOT/TOP page reference.
func magazinePrefix(magazine int) string {
	return string(rune('0' + magazine))
}

// Merge combines an existing page with a newer subpage carrying the same
// subcode: scalar flags are always replaced by other's, rows are overwritten
// only at the indices where other has a row, Links is replaced when other
// carries fastext links, EnhancementLinks is replaced wholesale, and
// per-designation enhancement/replacement entries are overwritten only where
// other has a non-empty entry (spec.md §4.6, invariant 8's merge law).
func (p *Page) Merge(other *Page) {
	p.Erase = other.Erase
	p.Newsflash = other.Newsflash
	p.Subtitles = other.Subtitles
	p.SuppressHeader = other.SuppressHeader
	p.Update = other.Update
	p.InterruptedSequence = other.InterruptedSequence
	p.InhibitDisplay = other.InhibitDisplay
	p.MagazineSerial = other.MagazineSerial
	p.NationalOptionSubset = other.NationalOptionSubset
	p.DisplayRow24 = other.DisplayRow24

	for i, r := range other.Rows {
		if r != nil {
			p.Rows[i] = r
		}
	}
	if other.Links != nil {
		p.Links = other.Links
	}
	p.EnhancementLinks = other.EnhancementLinks

	for i, e := range other.EnhancementData {
		if e != nil {
			p.EnhancementData[i] = e
		}
	}
	for i, r := range other.ReplacementData {
		if r != nil {
			p.ReplacementData[i] = r
		}
	}
}
