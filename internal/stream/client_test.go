// ABOUTME: Tests for the stream client lifecycle and reconnect policy
// ABOUTME: Runs against in-process TCP servers with the native Opus encoder
package stream

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeSource always has zero-filled frames available at the engine rate.
type fakeSource struct {
	rate  int
	block int
}

func (s *fakeSource) ReadFrames(out []float32) int {
	for i := range out {
		out[i] = 0
	}
	return len(out) / 2
}

func (s *fakeSource) SampleRate() int  { return s.rate }
func (s *fakeSource) BlockFrames() int { return s.block }

// statusLog records transitions from the client's StatusFunc.
type statusLog struct {
	mu   sync.Mutex
	seen []Status
}

func (l *statusLog) record(s Status, _ string) {
	l.mu.Lock()
	l.seen = append(l.seen, s)
	l.mu.Unlock()
}

func (l *statusLog) contains(s Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, x := range l.seen {
		if x == s {
			return true
		}
	}
	return false
}

// acceptingServer answers source handshakes and discards stream data until
// the test ends.
func acceptingServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					line, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if strings.TrimRight(line, "\r\n") == "" {
						break
					}
				}
				c.Write([]byte("HTTP/1.0 200 OK\r\n\r\n"))
				io.Copy(io.Discard, r)
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func opusTestConfig(t *testing.T, addr string) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Host, cfg.Port = splitAddr(t, addr)
	cfg.Codec = CodecOpus
	cfg.Rate = 48000
	cfg.Bitrate = 96
	cfg.ConnectTimeout = 2 * time.Second
	return cfg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestClientRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bitrate = 100
	if _, err := NewClient(cfg, nil); err == nil {
		t.Error("invalid config accepted")
	}
}

func TestClientLifecycle(t *testing.T) {
	addr := acceptingServer(t)
	log := &statusLog{}
	c, err := NewClient(opusTestConfig(t, addr), log.record)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	src := &fakeSource{rate: 48000, block: 960}
	if err := c.StartStreaming(src); err == nil {
		t.Fatal("start while disconnected accepted")
	}

	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if c.Status() != StatusConnected {
		t.Fatalf("status %v after connect", c.Status())
	}

	if err := c.StartStreaming(src); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.StartStreaming(src); err != nil {
		t.Errorf("start not idempotent: %v", err)
	}
	if c.Status() != StatusStreaming {
		t.Fatalf("status %v after start", c.Status())
	}

	if !waitFor(t, 3*time.Second, func() bool { return c.Stats().BytesSent > 0 }) {
		t.Fatal("no bytes sent")
	}

	// Monotonic statistics across observations.
	prev := c.Stats()
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		cur := c.Stats()
		if cur.BytesSent < prev.BytesSent || cur.ConnectedMs < prev.ConnectedMs {
			t.Fatalf("stats went backwards: %+v -> %+v", prev, cur)
		}
		prev = cur
	}

	c.StopStreaming()
	if c.Status() != StatusConnected {
		t.Errorf("stop_streaming should stay connected, got %v", c.Status())
	}

	c.Disconnect()
	if c.Status() != StatusDisconnected {
		t.Errorf("status %v after disconnect", c.Status())
	}
	if !log.contains(StatusConnecting) || !log.contains(StatusStreaming) {
		t.Error("status callback missed transitions")
	}
}

func TestClientReconnectBound(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	// First handshake succeeds, then the connection and listener die.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if strings.TrimRight(line, "\r\n") == "" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.0 200 OK\r\n\r\n"))
		time.Sleep(50 * time.Millisecond)
		conn.Close()
		ln.Close()
	}()

	cfg := opusTestConfig(t, ln.Addr().String())
	cfg.AutoReconnect = true
	cfg.ReconnectDelay = 50 * time.Millisecond
	cfg.MaxAttempts = 2

	log := &statusLog{}
	c, err := NewClient(cfg, log.record)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.StartStreaming(&fakeSource{rate: 48000, block: 960}); err != nil {
		t.Fatalf("start: %v", err)
	}

	ok := waitFor(t, 10*time.Second, func() bool {
		st := c.Stats()
		return st.Status == StatusError && st.Reconnects == cfg.MaxAttempts
	})
	st := c.Stats()
	if !ok {
		t.Fatalf("reconnect sequence did not settle: %+v", st)
	}
	if st.Reconnects != 2 {
		t.Errorf("reconnects %d, want 2", st.Reconnects)
	}
	if !log.contains(StatusReconnecting) {
		t.Error("never observed reconnecting")
	}
	if st.LastError == "" {
		t.Error("last error empty after failure")
	}
}

func TestClientNoReconnectWhenDisabled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if strings.TrimRight(line, "\r\n") == "" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.0 200 OK\r\n\r\n"))
		conn.Close()
		ln.Close()
	}()

	cfg := opusTestConfig(t, ln.Addr().String())
	cfg.AutoReconnect = false

	c, err := NewClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.StartStreaming(&fakeSource{rate: 48000, block: 960}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !waitFor(t, 5*time.Second, func() bool { return c.Status() == StatusError }) {
		t.Fatalf("expected error state, got %v", c.Status())
	}
	if got := c.Stats().Reconnects; got != 0 {
		t.Errorf("reconnected %d times with auto_reconnect off", got)
	}
}

func TestClientMetadataComposition(t *testing.T) {
	c, err := NewClient(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	c.UpdateMetadata("Artist X", "Song Y")
	if got := *c.pendSong.Load(); got != "Artist X - Song Y" {
		t.Errorf("composed %q", got)
	}

	c.UpdateMetadata("", "Just A Title")
	if got := *c.pendSong.Load(); got != "Just A Title" {
		t.Errorf("composed %q", got)
	}
}

func TestMultiStream(t *testing.T) {
	m := NewMulti(nil)

	id1, err := m.Add(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	id2, err := m.Add(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Fatal("duplicate stream ids")
	}
	if len(m.IDs()) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(m.IDs()))
	}

	bad := DefaultConfig()
	bad.Host = ""
	if _, err := m.Add(bad); err == nil {
		t.Error("invalid config accepted")
	}

	m.UpdateMetadata("A", "B")
	c1, err := m.Get(id1)
	if err != nil {
		t.Fatal(err)
	}
	if got := *c1.pendSong.Load(); got != "A - B" {
		t.Errorf("fan-out metadata %q", got)
	}

	if err := m.Remove(id1); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(id1); err == nil {
		t.Error("removed id still resolvable")
	}
	if err := m.Remove(id1); err == nil {
		t.Error("double remove succeeded")
	}
}
