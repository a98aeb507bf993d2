package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Write and read deadlines for the assessment stream. Reads are long on
// purpose: a student thinking about a question sends nothing for minutes,
// and the keep-alive ping resets the window.
const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends one typed event, refusing to block on a stuck peer for
// more than writeWait.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse.
func WriteError(conn *websocket.Conn, msg string) error {
	return WriteTyped(conn, ErrorResponse{Event: EventError, Error: msg})
}

// ReadJSON decodes the next client message, bounding the wait to readWait.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
