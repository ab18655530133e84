package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// scriptConn is an in-memory Conn whose reads are scripted. Once the script
// is exhausted, ReadMessage blocks until Close unblocks it, mirroring a
// socket waiting on the peer.
type scriptConn struct {
	script []scriptEntry

	mu       sync.Mutex
	idx      int
	written  []frame
	controls []frame
	writeErr error
	closed   chan struct{}
	once     sync.Once
}

type scriptEntry struct {
	messageType int
	data        []byte
	err         error
}

type frame struct {
	messageType int
	data        string
}

func newScriptConn(entries ...scriptEntry) *scriptConn {
	return &scriptConn{script: entries, closed: make(chan struct{})}
}

func (c *scriptConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if c.idx < len(c.script) {
		entry := c.script[c.idx]
		c.idx++
		c.mu.Unlock()
		return entry.messageType, entry.data, entry.err
	}
	c.mu.Unlock()

	<-c.closed
	return 0, nil, errors.New("use of closed connection")
}

func (c *scriptConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.written = append(c.written, frame{messageType, string(data)})
	return nil
}

func (c *scriptConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, frame{messageType, string(data)})
	return nil
}

func (c *scriptConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *scriptConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *scriptConn) writtenFrames() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.written...)
}

func text(s string) scriptEntry {
	return scriptEntry{messageType: websocket.TextMessage, data: []byte(s)}
}

func cleanClose() scriptEntry {
	return scriptEntry{err: &websocket.CloseError{Code: websocket.CloseNormalClosure}}
}

func runWithTimeout(t *testing.T, client, upstream Conn) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- Run(client, upstream) }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("relay did not terminate")
		return nil
	}
}

func TestRun_ForwardsFramesInOrder(t *testing.T) {
	client := newScriptConn(text("a"), text("b"), text("c"), cleanClose())
	upstream := newScriptConn()

	if err := runWithTimeout(t, client, upstream); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := upstream.writtenFrames()
	want := []frame{
		{websocket.TextMessage, "a"},
		{websocket.TextMessage, "b"},
		{websocket.TextMessage, "c"},
	}
	if len(got) != len(want) {
		t.Fatalf("forwarded %d frames, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if !client.isClosed() || !upstream.isClosed() {
		t.Fatalf("both connections must be closed after run")
	}
}

func TestRun_PreservesBinaryFrames(t *testing.T) {
	client := newScriptConn(
		scriptEntry{messageType: websocket.BinaryMessage, data: []byte{0x01, 0x02}},
		cleanClose(),
	)
	upstream := newScriptConn()

	if err := runWithTimeout(t, client, upstream); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := upstream.writtenFrames()
	if len(got) != 1 || got[0].messageType != websocket.BinaryMessage {
		t.Fatalf("frames = %v, want one binary frame", got)
	}
}

func TestRun_DropsControlOnlyFrames(t *testing.T) {
	client := newScriptConn(
		scriptEntry{messageType: websocket.PingMessage, data: []byte("ping")},
		text("payload"),
		cleanClose(),
	)
	upstream := newScriptConn()

	if err := runWithTimeout(t, client, upstream); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := upstream.writtenFrames()
	if len(got) != 1 || got[0].data != "payload" {
		t.Fatalf("frames = %v, want only the text payload", got)
	}
}

func TestRun_UpstreamFailureTearsDownClient(t *testing.T) {
	transportErr := errors.New("connection reset")
	client := newScriptConn() // blocks until closed
	upstream := newScriptConn(scriptEntry{err: transportErr})

	err := runWithTimeout(t, client, upstream)
	if !errors.Is(err, transportErr) {
		t.Fatalf("err = %v, want %v", err, transportErr)
	}
	if !client.isClosed() {
		t.Fatalf("client must be closed after upstream failure")
	}
}

func TestRun_CleanUpstreamCloseIsNotAnError(t *testing.T) {
	client := newScriptConn()
	upstream := newScriptConn(cleanClose())

	if err := runWithTimeout(t, client, upstream); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_GoingAwayIsNotAnError(t *testing.T) {
	client := newScriptConn(scriptEntry{err: &websocket.CloseError{Code: websocket.CloseGoingAway}})
	upstream := newScriptConn()

	if err := runWithTimeout(t, client, upstream); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_WriteFailurePropagates(t *testing.T) {
	writeErr := errors.New("write: broken pipe")
	client := newScriptConn(text("a"))
	upstream := newScriptConn()
	upstream.writeErr = writeErr

	err := runWithTimeout(t, client, upstream)
	if !errors.Is(err, writeErr) {
		t.Fatalf("err = %v, want %v", err, writeErr)
	}
}

func TestRun_SendsCloseFrameBeforeClosing(t *testing.T) {
	client := newScriptConn(cleanClose())
	upstream := newScriptConn()

	if err := runWithTimeout(t, client, upstream); err != nil {
		t.Fatalf("run: %v", err)
	}

	upstream.mu.Lock()
	controls := append([]frame(nil), upstream.controls...)
	upstream.mu.Unlock()
	if len(controls) == 0 || controls[0].messageType != websocket.CloseMessage {
		t.Fatalf("controls = %v, want a close frame", controls)
	}
}
