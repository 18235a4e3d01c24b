package bridge

import (
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/artpar/sesh/internal/protocol"
)

// fakeHost listens on a unix socket and writes a single length-framed
// DATA("hello") message to the first connection it accepts.
func fakeHost(t *testing.T, sockPath string) net.Listener {
	t.Helper()
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write(protocol.Encode(protocol.Data, []byte("hello")))
		time.Sleep(50 * time.Millisecond)
		conn.Close()
	}()
	return ln
}

func TestNetworkBridgeRelaysHostToClient(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "h.sock")
	ln := fakeHost(t, sockPath)
	defer ln.Close()

	n := NewNetwork()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Serve(w, r, sockPath, true)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if protocol.FrameType(msg[0]) != protocol.Data {
		t.Fatalf("tag = %v, want DATA", protocol.FrameType(msg[0]))
	}
	if string(msg[1:]) != "hello" {
		t.Fatalf("body = %q, want hello", msg[1:])
	}
}

func TestNetworkBridgeDropsInputWhenReadOnly(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "h.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		var parseBuf []byte
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			parseBuf = append(parseBuf, buf[:n]...)
			parseBuf, _ = protocol.Parse(parseBuf, func(f protocol.Frame) {
				select {
				case received <- append([]byte{byte(f.Type)}, f.Body...):
				default:
				}
			})
		}
	}()

	n := NewNetwork()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.Serve(w, r, sockPath, false)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.WriteMessage(websocket.BinaryMessage, wsPayload(protocol.Data, []byte("should not arrive")))
	conn.WriteMessage(websocket.BinaryMessage, wsPayload(protocol.Resume, protocol.EncodeFloat64(0)))

	select {
	case body := <-received:
		if protocol.FrameType(body[0]) != protocol.Resume {
			t.Fatalf("expected only RESUME to reach the host, got tag %v", protocol.FrameType(body[0]))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for RESUME to reach host")
	}
}
