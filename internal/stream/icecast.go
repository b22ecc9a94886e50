// ABOUTME: Icecast2 source transport: SOURCE handshake and admin metadata
// ABOUTME: Raw codec frames over TCP after a 200 response
package stream

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error kinds. Callers discriminate with errors.Is; ErrProtocol means the
// server rejected us (credentials or mount) and reconnecting will not help.
var (
	ErrNetwork  = errors.New("network failure")
	ErrProtocol = errors.New("protocol failure")
	ErrEncoder  = errors.New("encoder failure")
)

// transport is one protocol-specific source connection. Implementations own
// the TCP socket; only the stream worker calls them.
type transport interface {
	Connect() error
	Write(frame []byte) error
	// UpdateMetadata applies "Artist - Title" at the next safe boundary.
	UpdateMetadata(song string) error
	Close() error
}

func newTransport(cfg Config) transport {
	if cfg.Protocol == SHOUTcast {
		return &shoutcastTransport{cfg: cfg, metaint: defaultMetaint}
	}
	return &icecastTransport{cfg: cfg}
}

type icecastTransport struct {
	cfg  Config
	conn net.Conn
	http *http.Client
}

func (t *icecastTransport) Connect() error {
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
	fmt.Fprintf(&req, "SOURCE %s HTTP/1.0\r\n", t.cfg.Mount)
	fmt.Fprintf(&req, "Authorization: Basic %s\r\n", t.basicAuth())
	fmt.Fprintf(&req, "User-Agent: %s\r\n", t.cfg.UserAgent)
	fmt.Fprintf(&req, "Content-Type: %s\r\n", t.cfg.Codec.MimeType())
	fmt.Fprintf(&req, "ice-name: %s\r\n", t.cfg.Name)
	fmt.Fprintf(&req, "ice-description: %s\r\n", t.cfg.Description)
	fmt.Fprintf(&req, "ice-genre: %s\r\n", t.cfg.Genre)
	fmt.Fprintf(&req, "ice-url: %s\r\n", t.cfg.URL)
	fmt.Fprintf(&req, "ice-public: %d\r\n", public)
	fmt.Fprintf(&req, "ice-audio-info: bitrate=%d;samplerate=%d;channels=%d\r\n",
		t.cfg.Bitrate, t.cfg.Rate, t.cfg.Channels)
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
	if !strings.Contains(line, " 200 ") && !strings.Contains(line, " 200\r") {
		conn.Close()
		return fmt.Errorf("server refused source: %w: %s", ErrProtocol, strings.TrimSpace(line))
	}

	conn.SetDeadline(time.Time{})
	t.conn = conn
	return nil
}

func (t *icecastTransport) basicAuth() string {
	cred := t.cfg.User + ":" + t.cfg.Password
	return base64.StdEncoding.EncodeToString([]byte(cred))
}

func (t *icecastTransport) Write(frame []byte) error {
	if t.conn == nil {
		return fmt.Errorf("write: %w: not connected", ErrNetwork)
	}
	t.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	if _, err := t.conn.Write(frame); err != nil {
		return fmt.Errorf("send frame: %w: %v", ErrNetwork, err)
	}
	return nil
}

// UpdateMetadata pushes the song string through the admin interface. A
// non-200 response is reported but treated as non-fatal by the caller.
func (t *icecastTransport) UpdateMetadata(song string) error {
	if t.http == nil {
		t.http = &http.Client{Timeout: t.cfg.ConnectTimeout}
	}

	u := fmt.Sprintf("http://%s:%d/admin/metadata?mount=%s&mode=updinfo&song=%s",
		t.cfg.Host, t.cfg.Port, urlEncode(t.cfg.Mount), urlEncode(song))
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("metadata request: %w", err)
	}
	req.SetBasicAuth(t.cfg.User, t.cfg.Password)

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("metadata update: %w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata update: %w: status %d", ErrProtocol, resp.StatusCode)
	}
	return nil
}

func (t *icecastTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// urlEncode escapes a query value with %20 for spaces, which is what
// Icecast's admin interface expects for song strings.
func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
