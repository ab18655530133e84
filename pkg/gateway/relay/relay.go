// Package relay bridges a client WebSocket and an upstream agent WebSocket,
// forwarding frames verbatim in both directions until either leg ends.
package relay

import (
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the relay needs. Each connection is
// read by exactly one pump and written by exactly one pump, which matches
// gorilla's one-reader/one-writer rule; close frames go through
// WriteControl, which is safe concurrently with WriteMessage.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

const closeGrace = 2 * time.Second

// Run pumps frames client->upstream and upstream->client concurrently until
// one direction finishes, then closes both connections and waits for the
// other pump to unblock and exit. Closing the sockets is what interrupts a
// pump blocked in ReadMessage or WriteMessage, so no goroutine outlives the
// call.
//
// The outcome of the first pump to finish is the outcome of the relay: a
// clean peer disconnect is not an error, and the forcibly cancelled second
// pump never overrides the first result.
func Run(client, upstream Conn) error {
	done := make(chan error, 2)
	go func() { done <- pump(client, upstream) }()
	go func() { done <- pump(upstream, client) }()

	first := <-done

	closeCode := websocket.CloseNormalClosure
	closeText := ""
	if first != nil {
		closeCode = websocket.CloseInternalServerErr
		closeText = "relay failure"
	}
	deadline := time.Now().Add(closeGrace)
	closeMsg := websocket.FormatCloseMessage(closeCode, closeText)
	_ = client.WriteControl(websocket.CloseMessage, closeMsg, deadline)
	_ = upstream.WriteControl(websocket.CloseMessage, closeMsg, deadline)

	_ = client.Close()
	_ = upstream.Close()

	<-done
	return first
}

// pump forwards frames from src to dst one at a time, preserving the
// text/binary distinction and receipt order. It never buffers: a slow dst
// blocks the next read from src, so backpressure propagates to the source.
func pump(src, dst Conn) error {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			if isPeerGone(err) {
				return nil
			}
			return err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if err := dst.WriteMessage(messageType, data); err != nil {
			return err
		}
	}
}

// isPeerGone reports whether a read error is an orderly disconnect rather
// than a transport failure.
func isPeerGone(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
