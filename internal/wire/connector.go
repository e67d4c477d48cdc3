package wire

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-logr/logr"

	"github.com/hundred-solutions/onlyoffice-odoo/internal/bridge"
)

var (
	ErrConnectorClosed = errors.New("connector closed")
	ErrQueueFull       = errors.New("outbound queue full")
)

const writeTimeout = 10 * time.Second

// outbox serialises every server message onto one connection through a
// single writer goroutine.
type outbox struct {
	conn     *websocket.Conn
	log      logr.Logger
	ch       chan ServerMessage
	done     chan struct{} // closed when no more messages are accepted
	finished chan struct{} // closed when the writer exits
	once     sync.Once
}

func newOutbox(conn *websocket.Conn, size int, log logr.Logger) *outbox {
	return &outbox{
		conn:     conn,
		log:      log,
		ch:       make(chan ServerMessage, size),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// run writes queued messages until stop, then flushes what is left.
func (o *outbox) run(ctx context.Context) {
	defer close(o.finished)
	for {
		select {
		case msg := <-o.ch:
			if !o.write(ctx, msg) {
				return
			}
		case <-o.done:
			for {
				select {
				case msg := <-o.ch:
					if !o.write(ctx, msg) {
						return
					}
				default:
					return
				}
			}
		case <-ctx.Done():
			o.stop()
			return
		}
	}
}

func (o *outbox) write(ctx context.Context, msg ServerMessage) bool {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, o.conn, msg); err != nil {
		o.log.V(1).Info("websocket write failed", "type", msg.Type, "error", err.Error())
		o.stop()
		return false
	}
	return true
}

// close stops accepting messages and waits for the writer to flush.
func (o *outbox) close() {
	o.stop()
	<-o.finished
}

// send queues msg, waiting for room.
func (o *outbox) send(ctx context.Context, msg ServerMessage) error {
	select {
	case <-o.done:
		return ErrConnectorClosed
	default:
	}
	select {
	case o.ch <- msg:
		return nil
	case <-o.done:
		return ErrConnectorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trySend queues msg without waiting.
func (o *outbox) trySend(msg ServerMessage) error {
	select {
	case <-o.done:
		return ErrConnectorClosed
	default:
	}
	select {
	case o.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (o *outbox) stop() {
	o.once.Do(func() { close(o.done) })
}

// Connector relays bridge commands to the editor page as "command"
// messages. It never waits for the page to run them.
type Connector struct {
	out    *outbox
	closed atomic.Bool
}

func newConnector(out *outbox) *Connector {
	return &Connector{out: out}
}

// Execute implements bridge.Connector.
func (c *Connector) Execute(cmd bridge.Command) error {
	if c.closed.Load() {
		return ErrConnectorClosed
	}
	script, err := cmd.Script()
	if err != nil {
		return err
	}
	return c.out.trySend(ServerMessage{
		Type: TypeCommand,
		Data: CommandData{Command: cmd, Script: script},
	})
}

// Disconnect stops the connector from accepting commands. The underlying
// connection is owned by the handler.
func (c *Connector) Disconnect() {
	c.closed.Store(true)
}
