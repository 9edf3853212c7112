package sink

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/ttxfromts/ttxcore/internal/bitcodec"
	"github.com/ttxfromts/ttxcore/internal/teletext"
)

// vbit2 PS control-byte bit assignments (vbit2 TTI convention: erase,
// newsflash, subtitles, suppress_header, update, interrupted_sequence,
// inhibit_display, magazine_serial, low-to-high).
const (
	psErase = 1 << iota
	psNewsflash
	psSubtitles
	psSuppressHeader
	psUpdate
	psInterruptedSequence
	psInhibitDisplay
	psMagazineSerial
)

// TTISink renders the finalised Service model as vbit2's TTI text format,
// one page per PN/SC/PS/OL record block (spec.md §4.12, §4.10). Implements
// PageSink.
type TTISink struct {
	w *bufio.Writer
}

// NewTTISink wraps w (normally a per-page .tti file or a single archive
// stream) for TTI text rendering.
func NewTTISink(w io.Writer) *TTISink {
	return &TTISink{w: bufio.NewWriter(w)}
}

// WriteService walks every magazine's carousels, sorted by subcode (spec.md
// §4.10's display order), and renders one PN/SC/PS/OL block per page.
func (s *TTISink) WriteService(svc *teletext.Service) error {
	for _, mag := range svc.Magazines {
		if mag == nil {
			continue
		}
		numbers := make([]string, 0, len(mag.Carousels))
		for number := range mag.Carousels {
			numbers = append(numbers, number)
		}
		sort.Strings(numbers)

		for _, number := range numbers {
			carousel := mag.Carousels[number]
			for _, page := range carousel.Pages {
				if err := s.writePage(page); err != nil {
					return err
				}
			}
		}
	}
	return s.w.Flush()
}

func (s *TTISink) writePage(p *teletext.Page) error {
	if _, err := fmt.Fprintf(s.w, "PN,%d%s\r\n", p.Magazine, p.Number); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "SC,%s\r\n", p.Subcode); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "PS,%04X\r\n", controlMask(p)); err != nil {
		return err
	}
	if header := p.Rows[0]; header != nil {
		text := decodeRowText(header)
		if isClockPlaceholder(text[30:38]) {
			text = text[:30] + "        "
		}
		if _, err := fmt.Fprintf(s.w, "OL,0,%s\r\n", text); err != nil {
			return err
		}
	}
	for row := 1; row <= 25; row++ {
		data := p.Rows[row]
		if data == nil {
			continue
		}
		if _, err := fmt.Fprintf(s.w, "OL,%d,%s\r\n", row, decodeRowText(data)); err != nil {
			return err
		}
	}
	return nil
}

// isClockPlaceholder decides whether the header row's trailing 8 display
// characters are a live broadcast clock (HH:MM:SS plus two separators or
// padding) rather than static page text. A clock is regenerated by the
// broadcast chain at insertion time, so it is blanked out here rather than
// stored as page content (spec.md §9's header-template note).
func isClockPlaceholder(text string) bool {
	if len(text) != 8 {
		return false
	}
	digits := 0
	for _, c := range text {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == ':' || c == '.' || c == ' ':
			// separator or padding, allowed anywhere
		default:
			return false
		}
	}
	return digits >= 4
}

func controlMask(p *teletext.Page) int {
	mask := 0
	if p.Erase {
		mask |= psErase
	}
	if p.Newsflash {
		mask |= psNewsflash
	}
	if p.Subtitles {
		mask |= psSubtitles
	}
	if p.SuppressHeader {
		mask |= psSuppressHeader
	}
	if p.Update {
		mask |= psUpdate
	}
	if p.InterruptedSequence {
		mask |= psInterruptedSequence
	}
	if p.InhibitDisplay {
		mask |= psInhibitDisplay
	}
	if p.MagazineSerial {
		mask |= psMagazineSerial
	}
	return mask
}

// decodeRowText renders a raw 38-byte row as printable ASCII, odd-parity
// decoded, with a space substituted on parity failure or a non-printable
// result (spec.md §4.1's rationale for display rendering).
func decodeRowText(row *[38]byte) string {
	buf := make([]byte, len(row))
	for i, b := range row {
		c := bitcodec.OddParity(b)
		if c < 0x20 || c == 0x7F {
			c = ' '
		}
		buf[i] = c
	}
	return string(buf)
}
