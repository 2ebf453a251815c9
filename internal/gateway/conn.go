package gateway

import (
	"context"
	"sync"

	"github.com/coder/websocket"

	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/logger"
	"github.com/julianstephens/studyroom/internal/models"
)

// conn is one authenticated socket. Only its read goroutine changes the
// room fields; the hub reads them under its own lock.
type conn struct {
	id   string
	user models.User
	ws   *websocket.Conn
	send chan []byte

	room     string
	roomChat bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(id string, user models.User, ws *websocket.Conn) *conn {
	return &conn{
		id:     id,
		user:   user,
		ws:     ws,
		send:   make(chan []byte, constants.SocketSendBuffer),
		closed: make(chan struct{}),
	}
}

// enqueue queues msg without blocking. A full buffer drops the message.
func (c *conn) enqueue(msg []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		logger.Warn("Dropping message for slow socket", "conn", c.id, "user", c.user.ID)
	}
}

func (c *conn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, constants.SocketWriteTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				logger.Debug("Socket write failed", "conn", c.id, "error", err)
				c.ws.CloseNow()
				return
			}
		}
	}
}

func (c *conn) markClosed() {
	c.closeOnce.Do(func() { close(c.closed) })
}
