package remote

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadBufferSize  = 8192
	wsWriteBufferSize = 8192
	wsPongWait        = 45 * time.Second
	wsWriteWait       = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsReadBufferSize,
	WriteBufferSize: wsWriteBufferSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler upgrades incoming HTTP connections to websockets and speaks the
// editor protocol over each one, for editors that connect over the network
// rather than a local pipe (a pipe or other io.ReadWriter can be handed to
// Server.Serve directly, as this package's tests do with net.Pipe).
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("remote: websocket upgrade failed", "error", err)
			return
		}
		rw := newWSReadWriter(conn)
		if err := s.Serve(r.Context(), rw); err != nil {
			s.logger.Warn("remote: websocket session ended", "error", err)
		}
	})
}

// wsReadWriter adapts a message-oriented websocket.Conn to the io.Reader/
// io.Writer pair ReadFrame/WriteFrame expect, so the same length-prefixed
// codec works whether the transport is a pipe or a websocket: each Write
// call becomes one binary message, and Read drains messages into an
// internal buffer as the codec asks for bytes.
type wsReadWriter struct {
	conn *websocket.Conn
	buf  bytes.Buffer
}

func newWSReadWriter(conn *websocket.Conn) *wsReadWriter {
	conn.SetReadLimit(MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	return &wsReadWriter{conn: conn}
}

func (w *wsReadWriter) Read(p []byte) (int, error) {
	for w.buf.Len() == 0 {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.buf.Write(data)
	}
	return w.buf.Read(p)
}

func (w *wsReadWriter) Write(p []byte) (int, error) {
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ListenAndServeWS is a convenience entrypoint for hosting the editor
// protocol over a single HTTP mux path; callers needing more control over
// the surrounding mux/TLS setup should mount Server.Handler() directly.
func (s *Server) ListenAndServeWS(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, s.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
