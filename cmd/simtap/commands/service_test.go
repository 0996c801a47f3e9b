package commands

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/gorilla/websocket"
)

const testAPIKey = "test-key"

// fakeService plays the monitor service: it completes the Engine.IO and
// Socket.IO handshakes, accepts testAPIKey and answers subscriptions
// according to attach.
type fakeService struct {
	srv *httptest.Server

	// attach returns the frames sent in reply to a subscription of simID.
	attach func(simID string) []string

	mu          sync.Mutex
	connections int
	open        []*websocket.Conn
	unsubscribe []string
}

func newFakeService(t *testing.T, attach func(simID string) []string) *fakeService {
	t.Helper()
	fs := &fakeService{attach: attach}

	upgrader := websocket.Upgrader{}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		fs.mu.Lock()
		fs.connections++
		fs.open = append(fs.open, ws)
		fs.mu.Unlock()

		fs.serve(ws)
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeService) serve(ws *websocket.Conn) {
	write := func(frame string) bool {
		return ws.WriteMessage(websocket.TextMessage, []byte(frame)) == nil
	}

	if !write(`0{"sid":"eio","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`) {
		return
	}
	if _, data, err := ws.ReadMessage(); err != nil || string(data) != "40" {
		return
	}
	if !write(`40{"sid":"sio"}`) {
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame := string(data)
		if !strings.HasPrefix(frame, "42") {
			continue
		}
		var args []json.RawMessage
		if err := json.Unmarshal(data[2:], &args); err != nil || len(args) < 2 {
			continue
		}
		var name, arg string
		_ = json.Unmarshal(args[0], &name)
		_ = json.Unmarshal(args[1], &arg)

		switch name {
		case "authenticate":
			if arg != testAPIKey {
				return
			}
			write(`42["authenticated"]`)
		case "subscribe:packets":
			for _, reply := range fs.attach(arg) {
				write(reply)
			}
		case "unsubscribe:packets":
			fs.mu.Lock()
			fs.unsubscribe = append(fs.unsubscribe, arg)
			fs.mu.Unlock()
		}
	}
}

func (fs *fakeService) config() Config {
	cfg := DefaultCLIConfig()
	cfg.URL = fs.srv.URL
	cfg.APIKey = testAPIKey
	return cfg
}

// dropConnections closes every WebSocket the service accepted so far.
func (fs *fakeService) dropConnections() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, ws := range fs.open {
		ws.Close()
	}
	fs.open = nil
}

func (fs *fakeService) connectionCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.connections
}

// attachedFrame announces simID as attached with ip.
func attachedFrame(simID, ip string) string {
	return fmt.Sprintf(`42["subscribed:packets",{"simId":%q,"ip":%q}]`, simID, ip)
}

// packetFrame carries data as a packets event for simID.
func packetFrame(simID string, data []byte) string {
	return fmt.Sprintf(`42["packets",{"simId":%q,"packet":%q}]`, simID, hex.EncodeToString(data))
}

// udpPacket builds an IPv4/UDP packet with an 8 byte payload.
func udpPacket(t *testing.T, src, dst string, sport, dport uint16) []byte {
	t.Helper()

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload([]byte("simtap!!"))); err != nil {
		t.Fatalf("serialize packet: %v", err)
	}
	return buf.Bytes()
}

func httpGet(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
