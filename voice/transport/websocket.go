package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// DialTimeout bounds how long dialing the signaling endpoint may take.
var DialTimeout = 10 * time.Second

// WebsocketDialer dials signaling endpoints with gorilla/websocket.
type WebsocketDialer struct{}

var _ Dialer = WebsocketDialer{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial signaling endpoint")
	}

	w := &wsTransport{
		conn:     conn,
		messages: make(chan Message),
	}
	go w.readLoop()

	return w, nil
}

// wsTransport implements Transport over a single gorilla/websocket
// connection. Writes are serialized with a mutex; gorilla/websocket
// connections only support one concurrent writer.
type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	messages chan Message

	closeOnce sync.Once
	closeErr  error
	closeErrMu sync.Mutex
}

var _ Transport = (*wsTransport)(nil)

func (w *wsTransport) SendText(ctx context.Context, b []byte) error {
	return w.send(ctx, websocket.TextMessage, b)
}

func (w *wsTransport) SendBinary(ctx context.Context, b []byte) error {
	return w.send(ctx, websocket.BinaryMessage, b)
}

func (w *wsTransport) send(ctx context.Context, messageType int, b []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := w.conn.SetWriteDeadline(deadline); err != nil {
			return errors.Wrap(err, "failed to set write deadline")
		}
	}

	if err := w.conn.WriteMessage(messageType, b); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

func (w *wsTransport) Listen() <-chan Message {
	return w.messages
}

func (w *wsTransport) Err() error {
	w.closeErrMu.Lock()
	defer w.closeErrMu.Unlock()
	return w.closeErr
}

func (w *wsTransport) readLoop() {
	defer close(w.messages)

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closeErrMu.Lock()
			w.closeErr = errors.Wrap(err, "transport read failed")
			w.closeErrMu.Unlock()
			return
		}

		w.messages <- Message{
			Binary: messageType == websocket.BinaryMessage,
			Data:   data,
		}
	}
}

func (w *wsTransport) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.conn.Close()
	})
	return err
}
