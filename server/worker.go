package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"wsforge/httpmsg"
	"wsforge/netio"
	"wsforge/websocket"
)

// Worker glues the parser, handshake decider, and connection state machine
// together for exactly one accepted stream.
type Worker struct {
	cfg       *Config
	conn      net.Conn
	sessionID string
	logger    *slog.Logger
}

func newWorker(cfg *Config, conn net.Conn) *Worker {
	sessionID := uuid.NewString()
	return &Worker{
		cfg:       cfg,
		conn:      conn,
		sessionID: sessionID,
		logger:    cfg.Logger.With(slog.String("session", sessionID), slog.String("remote", conn.RemoteAddr().String())),
	}
}

// Serve runs the worker's entire sequence for one connection: parse one
// request, branch to the WebSocket path or the HTTP path, and close.
func (w *Worker) Serve(ctx context.Context) {
	defer w.conn.Close()

	w.cfg.Metrics.connectionAccepted()
	defer w.cfg.Metrics.connectionClosed()

	if w.cfg.SocketLingerSeconds > 0 {
		if tc, ok := w.conn.(*net.TCPConn); ok {
			_ = tc.SetLinger(w.cfg.SocketLingerSeconds)
		}
	}

	_ = w.conn.SetDeadline(time.Now().Add(w.cfg.HTTPReadTimeout))
	lr := netio.New(w.conn)

	req, err := httpmsg.ParseRequest(ctx, lr, w.cfg.MaxRequestBodyBytes)
	if err != nil {
		w.writeParseError(err)
		return
	}

	if w.cfg.WebSocketSelector != nil {
		if handler, ok := w.cfg.WebSocketSelector(req.Path); ok {
			if websocket.IsUpgrade(req) {
				w.serveWebSocket(ctx, lr, req, handler)
				return
			}
			w.cfg.Metrics.handshakeFailed()
		}
	}

	w.serveHTTP(ctx, req)
}

func (w *Worker) writeParseError(err error) {
	status, reason := 400, "Bad Request"
	if pe, ok := err.(*httpmsg.ProtocolError); ok && pe.Oversize() {
		status, reason = 413, "Payload Too Large"
	}
	resp := &httpmsg.Response{StatusCode: status, StatusReason: reason, ContentType: "text/plain", Body: []byte(err.Error())}
	_ = httpmsg.WriteResponse(w.conn, resp, false)
	w.logger.Debug("request parse failed", slog.String("error", err.Error()))
}

func (w *Worker) serveHTTP(ctx context.Context, req *httpmsg.Request) {
	var resp *httpmsg.Response
	if w.cfg.Handler != nil {
		var err error
		resp, err = w.cfg.Handler(ctx, req)
		if err != nil {
			resp = &httpmsg.Response{StatusCode: 500, StatusReason: "Internal Server Error", ContentType: "text/plain", Body: []byte(err.Error())}
		}
	} else {
		resp = &httpmsg.Response{StatusCode: 404, StatusReason: "Not Found", ContentType: "text/plain", Body: []byte("not found")}
	}
	if err := httpmsg.WriteResponse(w.conn, resp, req.IsHead()); err != nil {
		w.logger.Debug("failed writing response", slog.String("error", err.Error()))
	}
}

func (w *Worker) serveWebSocket(ctx context.Context, lr *netio.Reader, req *httpmsg.Request, handler websocket.Handler) {
	acceptKey := websocket.ComputeAcceptKey(req.Header.Get("Sec-WebSocket-Key"))
	if err := websocket.WriteUpgradeResponse(w.conn, acceptKey); err != nil {
		w.logger.Debug("failed writing upgrade response", slog.String("error", err.Error()))
		return
	}

	// WebSocket connections are long-lived; liveness is the handler's
	// responsibility via ping/pong, not read/write deadlines.
	_ = w.conn.SetDeadline(time.Time{})

	// lr is the same Reader the HTTP request line/headers came through: any
	// bytes the client pipelined past the trailing CRLF (e.g. its first
	// frame, in the same TCP segment as the GET) are already sitting in its
	// residue slot and must not be dropped by starting a fresh Reader here.
	wsConn := websocket.NewConnection(lr, w.conn, websocket.Config{
		MaxFramePayloadBytes: w.cfg.MaxFramePayloadBytes,
		StrictMasking:        w.cfg.StrictMasking,
	})
	if w.cfg.Metrics != nil {
		wsConn.OnFrameReceived(func(n int) { w.cfg.Metrics.frameReceived(n) })
		wsConn.OnFrameSent(func(n int) { w.cfg.Metrics.frameSent(n) })
	}

	handler(ctx, req, wsConn)

	// Best-effort graceful close: if no Close frame has been sent or
	// received yet, send one now so the peer sees a clean shutdown. A Close
	// received from the peer that the handler did not answer is not
	// answered here either.
	if wsConn.IsOpen() {
		_ = wsConn.Close(websocket.CloseNormal, "")
	}
}
