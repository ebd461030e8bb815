package communication

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"ginrummy/meta"

	"github.com/gorilla/websocket"
)

// streamConn frames lines on a byte stream such as a TCP connection.
type streamConn struct {
	rwc     io.ReadWriteCloser
	scanner *bufio.Scanner
	mu      sync.Mutex // guards writes
}

func NewStreamConn(rwc io.ReadWriteCloser) Conn {
	scanner := bufio.NewScanner(rwc)
	scanner.Buffer(make([]byte, 0, 512), meta.MAX_LINE)
	return &streamConn{rwc: rwc, scanner: scanner}
}

func (c *streamConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(c.scanner.Text(), "\r"), nil
}

func (c *streamConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.rwc, line+"\n")
	return err
}

func (c *streamConn) Close() error { return c.rwc.Close() }

// wsConn sends one line per websocket text message.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func NewWebSocketConn(ws *websocket.Conn) Conn {
	ws.SetReadLimit(meta.MAX_LINE)
	return &wsConn{ws: ws}
}

func (c *wsConn) ReadLine() (string, error) {
	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", io.EOF
			}
			return "", err
		}
		if messageType == websocket.TextMessage {
			return strings.TrimRight(string(message), "\r\n"), nil
		}
	}
}

func (c *wsConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close says goodbye before closing the underlying connection.
func (c *wsConn) Close() error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteMessage(websocket.CloseMessage, msg)
	c.mu.Unlock()
	return c.ws.Close()
}
