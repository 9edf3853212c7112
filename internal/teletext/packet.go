package teletext

import "github.com/ttxfromts/ttxcore/internal/bitcodec"

const framingCodeValue = 0x27

// Parse decodes a raw 42-byte teletext line into a typed Packet (spec.md
// §4.5). Clock-run-in (byte 0) is ignored. Magazine/row addressing failures
// and a bad framing code both set DecodingError, but parsing otherwise
// continues so a caller can still inspect whatever decoded.
func Parse(raw RawPacket) Packet {
	p := Packet{
		FramingCode: raw[1],
		Magazine:    0,
		Row:         -1,
		Full:        raw,
	}
	copy(p.Data[:], raw[4:42])

	if raw[1] != framingCodeValue {
		p.DecodingError = true
	}

	addr1 := bitcodec.Hamming84(raw[2])
	addr2 := bitcodec.Hamming84(raw[3])
	if addr1 == bitcodec.HammingSentinel || addr2 == bitcodec.HammingSentinel {
		p.DecodingError = true
		return p
	}

	magazine := int(addr1 & 0x07)
	if magazine == 0 {
		magazine = 8
	}
	row := int(addr1>>3) | int(addr2)<<1

	p.Magazine = magazine
	p.Row = row
	p.Type = typeFromRow(magazine, row)
	if p.Type == TypeUnspecified {
		p.DecodingError = true
	}
	return p
}

// typeFromRow classifies a packet by its magazine/row address (spec.md
// §4.5's table).
func typeFromRow(magazine, row int) PacketType {
	switch {
	case row == 0:
		return TypeHeader
	case row >= 1 && row <= 23:
		return TypePageBody
	case row == 24:
		return TypeFastext
	case row == 25:
		return TypeTopCommentary
	case row == 26:
		return TypePageReplacements
	case row == 27:
		return TypeLinkedPages
	case row == 28:
		return TypePageEnhancements
	case row == 29:
		return TypeMagazineEnhancements
	case row == 30 && magazine == 8:
		return TypeBroadcastServiceData
	default:
		return TypeUnspecified
	}
}
