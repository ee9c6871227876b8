package websocket

import (
	"context"

	"wsforge/httpmsg"
)

// Handler is invoked once per upgraded connection; it owns conn until it
// returns, at which point the worker performs a best-effort half-close and
// closes the stream.
type Handler func(ctx context.Context, req *httpmsg.Request, conn *Connection)

// Selector maps a request path to a Handler, mirroring the library
// surface's ws_handler_selector. A nil return with ok=false means the path
// has no WebSocket handler, so the worker falls through to the HTTP path.
type Selector func(path string) (Handler, bool)
