// ABOUTME: Minimal Ogg page writer for encapsulating Opus packets
// ABOUTME: Builds OpusHead/OpusTags preamble pages and audio pages with CRC
package stream

import (
	"encoding/binary"
	"fmt"
)

// Ogg page header flags.
const (
	oggContinued = 0x01
	oggBOS       = 0x02
	oggEOS       = 0x04
)

// oggCRCTable uses the Ogg polynomial 0x04c11db7, non-reflected, zero init,
// no final xor.
var oggCRCTable = func() [256]uint32 {
	var t [256]uint32
	for i := 0; i < 256; i++ {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = (r << 1) ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

func oggCRC(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

// oggWriter frames packets into Ogg pages for a single logical stream.
type oggWriter struct {
	serial uint32
	pageNo uint32
}

func newOggWriter(serial uint32) *oggWriter {
	return &oggWriter{serial: serial}
}

// page builds one Ogg page carrying a single packet. granule is the codec
// granule position after this packet (for Opus: PCM samples at 48 kHz).
func (w *oggWriter) page(packet []byte, granule uint64, flags byte) ([]byte, error) {
	segs := (len(packet) + 254) / 255
	if len(packet)%255 == 0 {
		segs++ // trailing lacing value of 0 terminates the packet
	}
	if segs > 255 {
		return nil, fmt.Errorf("ogg page: packet of %d bytes needs %d segments", len(packet), segs)
	}

	head := 27 + segs
	page := make([]byte, head+len(packet))
	copy(page, "OggS")
	page[4] = 0 // stream structure version
	page[5] = flags
	binary.LittleEndian.PutUint64(page[6:], granule)
	binary.LittleEndian.PutUint32(page[14:], w.serial)
	binary.LittleEndian.PutUint32(page[18:], w.pageNo)
	// page[22:26] is the CRC, filled below.
	page[26] = byte(segs)

	remain := len(packet)
	for i := 0; i < segs; i++ {
		if remain >= 255 {
			page[27+i] = 255
			remain -= 255
		} else {
			page[27+i] = byte(remain)
			remain = 0
		}
	}
	copy(page[head:], packet)

	binary.LittleEndian.PutUint32(page[22:], oggCRC(page))
	w.pageNo++
	return page, nil
}

// opusHead builds the identification header packet (RFC 7845 §5.1).
func opusHead(channels, inputRate int) []byte {
	p := make([]byte, 19)
	copy(p, "OpusHead")
	p[8] = 1 // version
	p[9] = byte(channels)
	binary.LittleEndian.PutUint16(p[10:], 312) // pre-skip, encoder default
	binary.LittleEndian.PutUint32(p[12:], uint32(inputRate))
	// Output gain 0, channel mapping family 0.
	return p
}

// opusTags builds the comment header packet (RFC 7845 §5.2).
func opusTags(vendor string) []byte {
	p := make([]byte, 8+4+len(vendor)+4)
	copy(p, "OpusTags")
	binary.LittleEndian.PutUint32(p[8:], uint32(len(vendor)))
	copy(p[12:], vendor)
	// Zero user comments.
	return p
}
