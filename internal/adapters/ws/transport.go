package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glancehq/glance-relay/internal/protocol"
)

const writeTimeout = 10 * time.Second

// connTransport wraps a gorilla connection behind session.Transport.
// gorilla allows a single concurrent writer, so writes are serialized
// under a mutex.
type connTransport struct {
	mu    sync.Mutex
	conn  *websocket.Conn
	codec *protocol.Codec
	open  bool
}

func newConnTransport(conn *websocket.Conn) *connTransport {
	return &connTransport{conn: conn, codec: protocol.NewCodec(), open: true}
}

func (t *connTransport) SendEvent(ev protocol.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}

	data, err := t.codec.EncodeEvent(ev)
	if err != nil {
		return err
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *connTransport) Close(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}
	t.open = false

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = t.conn.WriteMessage(websocket.CloseMessage, msg)
	return t.conn.Close()
}

// markClosed flags the transport after a read failure, when the peer is
// already gone and no further frames should be attempted.
func (t *connTransport) markClosed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
}

func (t *connTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}
