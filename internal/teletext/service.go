package teletext

import (
	"fmt"
	"strings"

	"github.com/ttxfromts/ttxcore/internal/bitcodec"
)

// ServiceDecoder is the top-level dispatcher over the raw packet stream: it
// classifies each packet, routes it to the owning magazine, tracks
// parallel/serial transmission mode, and decodes broadcast service data
// directly (spec.md §4.9).
type ServiceDecoder struct {
	service *Service
}

// NewServiceDecoder creates a decoder with all 8 magazines initialised and
// the Service defaults from spec.md §3.
func NewServiceDecoder() *ServiceDecoder {
	svc := &Service{
		InitialPage:    "8FF",
		InitialSubcode: "3F7F",
	}
	for i := range svc.Magazines {
		svc.Magazines[i] = NewMagazine(i + 1)
	}
	return &ServiceDecoder{service: svc}
}

// Dispatch parses a raw teletext line and routes the result (spec.md
// §4.9's top-level dispatch).
func (d *ServiceDecoder) Dispatch(raw RawPacket) {
	d.dispatch(Parse(raw))
}

func (d *ServiceDecoder) dispatch(p Packet) {
	if p.DecodingError || p.Magazine == 0 {
		return
	}

	if p.Type == TypeBroadcastServiceData {
		d.decodeX8_30(p)
		return
	}

	if p.Type == TypeHeader {
		n := bitcodec.Hamming84(p.Data[7])
		if n != bitcodec.HammingSentinel && n&0x01 != 0 {
			for i, mag := range d.service.Magazines {
				if i+1 != p.Magazine {
					mag.SerialHeaderReceived()
				}
			}
		}
	}

	d.service.Magazines[p.Magazine-1].AddPacket(p)
}

// decodeX8_30 decodes Packet X/8/30 broadcast service data (ETS 300 706
// §9.8), format 1/2 only — format 3 (Level 3.5 transport) is out of scope.
func (d *ServiceDecoder) decodeX8_30(p Packet) {
	data := p.Data
	designation := bitcodec.Hamming84(data[0])
	if designation == bitcodec.HammingSentinel {
		return
	}

	code := designation >> 1
	if code > 1 {
		return
	}
	d.service.Multiplexed = designation&0x01 == 0

	pageUnits := bitcodec.Hamming84(data[1])
	pageTens := bitcodec.Hamming84(data[2])
	s1 := bitcodec.Hamming84(data[3])
	s2 := bitcodec.Hamming84(data[4])
	s3 := bitcodec.Hamming84(data[5])
	s4 := bitcodec.Hamming84(data[6])

	if s2 != bitcodec.HammingSentinel && s4 != bitcodec.HammingSentinel {
		magDigit := int(s2>>3) | int((s4&0x0C)>>1)
		if magDigit == 0 {
			magDigit = 8
		}

		if pageUnits != bitcodec.HammingSentinel && pageTens != bitcodec.HammingSentinel {
			d.service.InitialPage = magazinePrefix(magDigit) + fmt.Sprintf("%X%X", pageTens, pageUnits)
		}
		if s1 != bitcodec.HammingSentinel && s3 != bitcodec.HammingSentinel {
			val := uint16(s4&0x03)<<12 | uint16(s3)<<8 | uint16(s2&0x07)<<4 | uint16(s1)
			d.service.InitialSubcode = fmt.Sprintf("%04X", val)
		}
	}

	if code == 0 {
		d.service.NetworkIdentificationCode = fmt.Sprintf("%02X%02X", data[7], data[8])
	}

	var sb strings.Builder
	for _, b := range data[20:] {
		c := bitcodec.OddParity(b)
		if c < 0x20 || c == 0x7F {
			c = ' '
		}
		sb.WriteByte(c)
	}
	d.service.StatusDisplay = strings.TrimRight(sb.String(), " ")
}

// Flush commits any page still under assembly in each magazine, sorts
// every carousel's pages by subcode, and returns the finalised Service
// (spec.md §4.10).
func (d *ServiceDecoder) Flush() *Service {
	for _, mag := range d.service.Magazines {
		mag.CommitCurrent()
		for _, carousel := range mag.Carousels {
			carousel.Sort()
		}
	}
	return d.service
}
