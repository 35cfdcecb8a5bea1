package ariarpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/ariatop/internal/rpctypes"
	"github.com/gorilla/websocket"
)

// Notification method names pushed by the daemon.
const (
	OnDownloadStart      = "aria2.onDownloadStart"
	OnDownloadPause      = "aria2.onDownloadPause"
	OnDownloadStop       = "aria2.onDownloadStop"
	OnDownloadComplete   = "aria2.onDownloadComplete"
	OnDownloadError      = "aria2.onDownloadError"
	OnBtDownloadComplete = "aria2.onBtDownloadComplete"
)

const notificationMethod = "notification"

// Notification is an event about a single download.
type Notification struct {
	Event string
	GID   string
}

type frame struct {
	n   Notification
	err error
}

// NotificationConn is a persistent WebSocket connection receiving daemon notifications.
type NotificationConn struct {
	conn    *websocket.Conn
	frames  chan frame
	closeC  chan struct{}
	doneC   chan struct{}
	closeMu sync.Once
}

// DialNotifications opens the WebSocket endpoint of the daemon that clt is configured for.
func DialNotifications(ctx context.Context, clt *Client) (*NotificationConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: clt.config.Timeout}
	conn, _, err := dialer.DialContext(ctx, clt.wsURL, nil)
	if err != nil {
		return nil, &TransportError{Method: notificationMethod, Err: err}
	}
	c := &NotificationConn{
		conn:   conn,
		frames: make(chan frame, 16),
		closeC: make(chan struct{}),
		doneC:  make(chan struct{}),
	}
	go c.reader()
	return c, nil
}

// reader is the only goroutine reading from the socket, so frames keep the order the daemon sent them in.
func (c *NotificationConn) reader() {
	defer close(c.doneC)
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			c.send(frame{err: &TransportError{Method: notificationMethod, Err: err}})
			return
		}
		n, err := decodeNotification(b)
		if !c.send(frame{n: n, err: err}) {
			return
		}
	}
}

func (c *NotificationConn) send(f frame) bool {
	select {
	case c.frames <- f:
		return true
	case <-c.closeC:
		return false
	}
}

func decodeNotification(b []byte) (Notification, error) {
	var msg rpctypes.Notification
	if err := json.Unmarshal(b, &msg); err != nil {
		return Notification{}, &ProtocolError{Method: notificationMethod, Err: err}
	}
	if msg.Error != nil {
		return Notification{}, &RemoteError{Method: notificationMethod, Code: msg.Error.Code, Message: msg.Error.Message}
	}
	if msg.Method == "" || len(msg.Params) == 0 || msg.Params[0].GID == "" {
		return Notification{}, &ProtocolError{Method: notificationMethod, Err: errors.New("malformed notification: " + string(b))}
	}
	return Notification{Event: msg.Method, GID: msg.Params[0].GID}, nil
}

// Receive waits up to timeout for the next notification.
// ok is false with a nil error when the timeout expired first.
// After a TransportError the connection is dead and must be closed.
func (c *NotificationConn) Receive(timeout time.Duration) (n Notification, ok bool, err error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-c.frames:
		if f.err != nil {
			return Notification{}, false, f.err
		}
		return f.n, true, nil
	case <-t.C:
		return Notification{}, false, nil
	case <-c.closeC:
		return Notification{}, false, &TransportError{Method: notificationMethod, Err: errors.New("connection closed")}
	}
}

// Close closes the connection and waits for the reader goroutine to exit.
func (c *NotificationConn) Close() error {
	var err error
	c.closeMu.Do(func() {
		close(c.closeC)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	<-c.doneC
	return err
}
