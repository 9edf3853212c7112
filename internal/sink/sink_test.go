package sink

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/ttxfromts/ttxcore/internal/teletext"
)

// encodeOddParity sets bit 7 of a 7-bit character so that the byte has odd
// parity overall, the inverse of bitcodec.OddParity used by these fixtures.
func encodeOddParity(c byte) byte {
	ones := 0
	for b := c; b != 0; b >>= 1 {
		if b&1 != 0 {
			ones++
		}
	}
	if ones%2 == 0 {
		return c | 0x80
	}
	return c
}

func buildRawPacket(fill byte) teletext.RawPacket {
	var p teletext.RawPacket
	for i := 2; i < 42; i++ {
		p[i] = fill
	}
	return p
}

func TestT42Sink_WritesLineOnly(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := NewT42Sink(&buf)

	if err := s.WritePacket(buildRawPacket(0xAB)); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if buf.Len() != 40 {
		t.Fatalf("len(buf) = %d, want 40", buf.Len())
	}
	for _, b := range buf.Bytes() {
		if b != 0xAB {
			t.Fatalf("byte = %#x, want 0xAB", b)
		}
	}
}

func TestStdOutSink_PadsPartialFieldOnClose(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := NewStdOutSink(&buf)

	for i := 0; i < 5; i++ {
		if err := s.WritePacket(buildRawPacket(0xFF)); err != nil {
			t.Fatalf("WritePacket: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := fieldLines * 40
	if buf.Len() != want {
		t.Fatalf("len(buf) = %d, want %d", buf.Len(), want)
	}
	tail := buf.Bytes()[5*40:]
	for _, b := range tail {
		if b != 0 {
			t.Fatalf("padding byte = %#x, want 0", b)
		}
	}
}

func TestStdOutSink_FullFieldNeedsNoPadding(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := NewStdOutSink(&buf)

	for i := 0; i < fieldLines; i++ {
		if err := s.WritePacket(buildRawPacket(0x41)); err != nil {
			t.Fatalf("WritePacket: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := fieldLines * 40
	if buf.Len() != want {
		t.Fatalf("len(buf) = %d, want %d", buf.Len(), want)
	}
}

func TestWebSocketSink_DropsWhenChannelFull(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _ := errgroup.WithContext(ctx)

	s := NewWebSocketSink(ctx, g, nil)
	wc := &wsConn{out: make(chan []byte, 1)}
	s.conns[wc] = struct{}{}

	if err := s.WritePacket(buildRawPacket(0x01)); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if err := s.WritePacket(buildRawPacket(0x02)); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	if s.sent != 1 || s.dropped != 1 {
		t.Fatalf("sent=%d dropped=%d, want sent=1 dropped=1", s.sent, s.dropped)
	}
	if len(wc.out) != 1 {
		t.Fatalf("len(wc.out) = %d, want 1", len(wc.out))
	}
}

func TestWebSocketSink_CloseDrainsConnections(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, _ := errgroup.WithContext(ctx)

	s := NewWebSocketSink(ctx, g, nil)
	wc := &wsConn{out: make(chan []byte, 1)}
	s.conns[wc] = struct{}{}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-wc.out; ok {
		t.Fatal("wc.out should be closed")
	}
}

func TestTTISink_WriteService(t *testing.T) {
	t.Parallel()
	svc := &teletext.Service{}
	mag := teletext.NewMagazine(1)
	page := teletext.NewPage(1)
	page.Number = "00"
	page.Subcode = "0000"
	page.Erase = true

	var headerRow [38]byte
	for i := 8; i < 38; i++ {
		headerRow[i] = encodeOddParity('A')
	}
	page.Rows[0] = &headerRow

	var bodyRow [38]byte
	for i := range bodyRow {
		bodyRow[i] = encodeOddParity('X')
	}
	page.Rows[1] = &bodyRow

	mag.Carousels["00"] = &teletext.Carousel{Number: "00", Pages: []*teletext.Page{page}}
	svc.Magazines[0] = mag

	var buf bytes.Buffer
	s := NewTTISink(&buf)
	if err := s.WriteService(svc); err != nil {
		t.Fatalf("WriteService: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "PN,100\r\n") {
		t.Errorf("missing PN line, got:\n%s", out)
	}
	if !strings.Contains(out, "SC,0000\r\n") {
		t.Errorf("missing SC line, got:\n%s", out)
	}
	if !strings.Contains(out, "OL,1,") {
		t.Errorf("missing OL,1 line, got:\n%s", out)
	}
}

func TestIsClockPlaceholder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want bool
	}{
		{"12:34:56", true},
		{"        ", false}, // all blank: 0 digits, below threshold
		{"NEWSROOM", false},
		{"12345678", true},
	}
	for _, tt := range tests {
		if got := isClockPlaceholder(tt.text); got != tt.want {
			t.Errorf("isClockPlaceholder(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
