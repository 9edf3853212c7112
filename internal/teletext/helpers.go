package teletext

import (
	"fmt"

	"github.com/ttxfromts/ttxcore/internal/bitcodec"
)

// decodePageNumber decodes the two Hamming 8/4-protected nibbles that make
// up a page number (units then tens), shared by the header and fastext
// link decoders. On any decode failure it returns the "FF" sentinel page
// number (spec.md §4.6).
func decodePageNumber(unitsByte, tensByte byte) (string, bool) {
	units := bitcodec.Hamming84(unitsByte)
	tens := bitcodec.Hamming84(tensByte)
	if units == bitcodec.HammingSentinel || tens == bitcodec.HammingSentinel {
		return "FF", false
	}
	return fmt.Sprintf("%X%X", tens, units), true
}

// decodeSubcode decodes the four Hamming 8/4-protected nibbles making up a
// subcode. A nibble that fails to decode contributes zero rather than
// aborting the whole value. The four decoded nibbles (or HammingSentinel on
// failure) are also returned for callers that need them individually (e.g.
// fastext link magazine derivation).
func decodeSubcode(b0, b1, b2, b3 byte) (string, [4]byte) {
	n0 := bitcodec.Hamming84(b0)
	n1 := bitcodec.Hamming84(b1)
	n2 := bitcodec.Hamming84(b2)
	n3 := bitcodec.Hamming84(b3)

	nibbles := [4]byte{n0, n1, n2, n3}

	v0, v1, v2, v3 := n0, n1, n2, n3
	if v0 == bitcodec.HammingSentinel {
		v0 = 0
	}
	if v1 == bitcodec.HammingSentinel {
		v1 = 0
	}
	if v2 == bitcodec.HammingSentinel {
		v2 = 0
	}
	if v3 == bitcodec.HammingSentinel {
		v3 = 0
	}

	val := uint16(v3&0x03)<<12 | uint16(v2)<<8 | uint16(v1&0x07)<<4 | uint16(v0)
	return fmt.Sprintf("%04X", val), nibbles
}

// controlFlag decodes byte via Hamming 8/4 and returns bit `bit` of the
// resulting nibble. ok is false if the byte failed to decode, in which case
// callers must leave the corresponding flag unchanged (spec.md §4.6).
func controlFlag(b byte, bit uint) (value bool, ok bool) {
	n := bitcodec.Hamming84(b)
	if n == bitcodec.HammingSentinel {
		return false, false
	}
	return n&(1<<bit) != 0, true
}
