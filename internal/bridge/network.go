package bridge

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/artpar/sesh/internal/logging"
	"github.com/artpar/sesh/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const pingInterval = 30 * time.Second

// wsPayload builds the WebSocket message body for a frame: a tag byte
// followed by the body, the same layout the domain socket carries
// after its length prefix (spec §6).
func wsPayload(t protocol.FrameType, body []byte) []byte {
	payload := make([]byte, 1+len(body))
	payload[0] = byte(t)
	copy(payload[1:], body)
	return payload
}

// Network exposes a host's domain socket to remote WebSocket clients,
// opening one fresh viewer connection per WebSocket per spec §4.7.
// Authentication (share tokens, read-only enforcement) happens before
// Serve is called; Network itself just relays frames 1:1.
type Network struct {
	log *logging.Logger
}

// NewNetwork constructs a Network bridge.
func NewNetwork() *Network {
	return &Network{log: logging.WithComponent("bridge.network")}
}

// Serve upgrades the HTTP request to a WebSocket and relays frames
// to/from the host socket at socketPath until either side closes. If
// writable is false, every client frame other than RESUME is dropped
// before reaching the host (the read-only enforcement spec §4.6
// assigns to the bridge).
func (n *Network) Serve(w http.ResponseWriter, r *http.Request, socketPath string, writable bool) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	hostConn, err := net.Dial("unix", socketPath)
	if err != nil {
		ws.WriteMessage(websocket.BinaryMessage, wsPayload(protocol.Exit, protocol.EncodeExit(-1)))
		return err
	}
	defer hostConn.Close()

	lastCode := int32(-1)
	done := make(chan struct{})

	go n.pumpHostToClient(hostConn, ws, &lastCode, done)
	n.pumpClientToHost(ws, hostConn, writable)

	<-done
	return nil
}

// pumpClientToHost relays inbound WebSocket messages as raw frame
// bodies to the host socket, wrapped in the length-prefixed envelope.
func (n *Network) pumpClientToHost(ws *websocket.Conn, hostConn net.Conn, writable bool) {
	ws.SetPongHandler(func(string) error { return nil })
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		if !writable {
			tag := protocol.FrameType(data[0])
			if tag != protocol.Resume {
				continue
			}
		}
		if _, err := hostConn.Write(protocol.EncodeRaw(data)); err != nil {
			return
		}
	}
}

// pumpHostToClient relays frames from the host socket to the
// WebSocket, one payload per binary message, and synthesizes EXIT if
// the host closes without sending one.
func (n *Network) pumpHostToClient(hostConn net.Conn, ws *websocket.Conn, lastCode *int32, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()

	var parseBuf []byte
	raw := make([]byte, 4096)
	sawExit := false

	for {
		nr, err := hostConn.Read(raw)
		if nr > 0 {
			parseBuf = append(parseBuf, raw[:nr]...)
			var parseErr error
			parseBuf, parseErr = protocol.Parse(parseBuf, func(f protocol.Frame) {
				if f.Type == protocol.Exit {
					sawExit = true
					if code, derr := protocol.DecodeExit(f.Body); derr == nil {
						*lastCode = code
					}
				}
				ws.WriteMessage(websocket.BinaryMessage, wsPayload(f.Type, f.Body))
			})
			if parseErr != nil {
				return
			}
		}
		if err != nil {
			if !sawExit {
				ws.WriteMessage(websocket.BinaryMessage, wsPayload(protocol.Exit, protocol.EncodeExit(*lastCode)))
			}
			return
		}
	}
}
