// ABOUTME: SHOUTcast source transport: ICY password handshake
// ABOUTME: Inline StreamTitle metadata injected at metaint boundaries
package stream

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// defaultMetaint is the byte interval between inline metadata segments.
const defaultMetaint = 8192

type shoutcastTransport struct {
	cfg     Config
	conn    net.Conn
	metaint int

	sinceMeta int // codec bytes written since the last metadata segment

	mu      sync.Mutex
	pending string // next StreamTitle, "" when unchanged
}

func (t *shoutcastTransport) Connect() error {
	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, t.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w: %v", addr, ErrNetwork, err)
	}

	public := 0
	if t.cfg.Public {
		public = 1
	}

	var req strings.Builder
	req.WriteString(t.cfg.Password + "\r\n")
	fmt.Fprintf(&req, "icy-name:%s\r\n", t.cfg.Name)
	fmt.Fprintf(&req, "icy-genre:%s\r\n", t.cfg.Genre)
	fmt.Fprintf(&req, "icy-pub:%d\r\n", public)
	fmt.Fprintf(&req, "icy-br:%d\r\n", t.cfg.Bitrate)
	fmt.Fprintf(&req, "icy-url:%s\r\n", t.cfg.URL)
	fmt.Fprintf(&req, "content-type:%s\r\n", t.cfg.Codec.MimeType())
	req.WriteString("\r\n")

	conn.SetDeadline(time.Now().Add(t.cfg.ConnectTimeout))
	if _, err := conn.Write([]byte(req.String())); err != nil {
		conn.Close()
		return fmt.Errorf("handshake send: %w: %v", ErrNetwork, err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake response: %w: %v", ErrNetwork, err)
	}
	if !strings.Contains(line, "OK") {
		conn.Close()
		return fmt.Errorf("server refused source: %w: %s", ErrProtocol, strings.TrimSpace(line))
	}

	conn.SetDeadline(time.Time{})
	t.conn = conn
	t.sinceMeta = 0
	return nil
}

// Write sends codec bytes, splicing a metadata segment in whenever the
// running byte count crosses a metaint boundary.
func (t *shoutcastTransport) Write(frame []byte) error {
	if t.conn == nil {
		return fmt.Errorf("write: %w: not connected", ErrNetwork)
	}

	for len(frame) > 0 {
		room := t.metaint - t.sinceMeta
		n := len(frame)
		if n > room {
			n = room
		}

		t.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
		if _, err := t.conn.Write(frame[:n]); err != nil {
			return fmt.Errorf("send frame: %w: %v", ErrNetwork, err)
		}
		t.sinceMeta += n
		frame = frame[n:]

		if t.sinceMeta == t.metaint {
			if err := t.writeMetaSegment(); err != nil {
				return err
			}
			t.sinceMeta = 0
		}
	}
	return nil
}

// writeMetaSegment emits one inline metadata segment: a length byte L then
// L*16 bytes of "StreamTitle='...';" padded with NULs, or a single zero
// byte when the title is unchanged.
func (t *shoutcastTransport) writeMetaSegment() error {
	t.mu.Lock()
	title := t.pending
	t.pending = ""
	t.mu.Unlock()

	var seg []byte
	if title == "" {
		seg = []byte{0}
	} else {
		body := fmt.Sprintf("StreamTitle='%s';", strings.ReplaceAll(title, "'", "`"))
		blocks := (len(body) + 15) / 16
		if blocks > 255 {
			blocks = 255
			body = body[:255*16]
		}
		seg = make([]byte, 1+blocks*16)
		seg[0] = byte(blocks)
		copy(seg[1:], body)
	}

	t.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	if _, err := t.conn.Write(seg); err != nil {
		return fmt.Errorf("send metadata: %w: %v", ErrNetwork, err)
	}
	return nil
}

// UpdateMetadata stages the title for the next metaint boundary.
func (t *shoutcastTransport) UpdateMetadata(song string) error {
	t.mu.Lock()
	t.pending = song
	t.mu.Unlock()
	return nil
}

func (t *shoutcastTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
