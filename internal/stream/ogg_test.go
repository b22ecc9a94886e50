// ABOUTME: Tests for the Ogg page writer
// ABOUTME: Covers header layout, CRC, lacing edge cases, and Opus headers
package stream

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestOggPageLayout(t *testing.T) {
	w := newOggWriter(0xdeadbeef)
	packet := []byte{1, 2, 3, 4, 5}

	page, err := w.page(packet, 960, oggBOS)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(page, []byte("OggS")) {
		t.Fatal("missing capture pattern")
	}
	if page[4] != 0 {
		t.Errorf("version %d", page[4])
	}
	if page[5] != oggBOS {
		t.Errorf("flags %#x", page[5])
	}
	if g := binary.LittleEndian.Uint64(page[6:]); g != 960 {
		t.Errorf("granule %d", g)
	}
	if s := binary.LittleEndian.Uint32(page[14:]); s != 0xdeadbeef {
		t.Errorf("serial %#x", s)
	}
	if n := binary.LittleEndian.Uint32(page[18:]); n != 0 {
		t.Errorf("first page number %d", n)
	}
	if page[26] != 1 || page[27] != 5 {
		t.Errorf("lacing: segs=%d first=%d", page[26], page[27])
	}
	if !bytes.Equal(page[28:], packet) {
		t.Error("payload mismatch")
	}
}

func TestOggPageCRC(t *testing.T) {
	w := newOggWriter(1)
	page, err := w.page([]byte("hello"), 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	stored := binary.LittleEndian.Uint32(page[22:])

	// Recompute over the page with a zeroed CRC field.
	check := make([]byte, len(page))
	copy(check, page)
	binary.LittleEndian.PutUint32(check[22:], 0)
	if got := oggCRC(check); got != stored {
		t.Errorf("crc %#x, want %#x", got, stored)
	}
	if stored == 0 {
		t.Error("crc unexpectedly zero")
	}
}

func TestOggPageNumberIncrements(t *testing.T) {
	w := newOggWriter(1)
	for i := 0; i < 3; i++ {
		page, err := w.page([]byte{0}, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if n := binary.LittleEndian.Uint32(page[18:]); n != uint32(i) {
			t.Errorf("page %d numbered %d", i, n)
		}
	}
}

func TestOggLacingMultipleOf255(t *testing.T) {
	w := newOggWriter(1)
	packet := make([]byte, 510)

	page, err := w.page(packet, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	// 510 bytes needs lacing 255, 255, 0 so the packet terminates.
	if page[26] != 3 {
		t.Fatalf("segments %d, want 3", page[26])
	}
	if page[27] != 255 || page[28] != 255 || page[29] != 0 {
		t.Errorf("lacing %d %d %d", page[27], page[28], page[29])
	}
}

func TestOggRejectsOversizedPacket(t *testing.T) {
	w := newOggWriter(1)
	if _, err := w.page(make([]byte, 256*255), 0, 0); err == nil {
		t.Error("oversized packet accepted")
	}
}

func TestOpusHeadLayout(t *testing.T) {
	h := opusHead(2, 48000)
	if !bytes.HasPrefix(h, []byte("OpusHead")) {
		t.Fatal("missing OpusHead magic")
	}
	if h[8] != 1 {
		t.Errorf("version %d", h[8])
	}
	if h[9] != 2 {
		t.Errorf("channels %d", h[9])
	}
	if r := binary.LittleEndian.Uint32(h[12:]); r != 48000 {
		t.Errorf("input rate %d", r)
	}
	if h[18] != 0 {
		t.Errorf("mapping family %d", h[18])
	}
}

func TestOpusTagsLayout(t *testing.T) {
	tags := opusTags("TestVendor/1.0")
	if !bytes.HasPrefix(tags, []byte("OpusTags")) {
		t.Fatal("missing OpusTags magic")
	}
	n := binary.LittleEndian.Uint32(tags[8:])
	if string(tags[12:12+n]) != "TestVendor/1.0" {
		t.Errorf("vendor %q", tags[12:12+n])
	}
	if c := binary.LittleEndian.Uint32(tags[12+n:]); c != 0 {
		t.Errorf("comment count %d", c)
	}
}
