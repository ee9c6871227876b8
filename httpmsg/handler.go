package httpmsg

import "context"

// Handler is the opaque user callable invoked for any request that is not
// a WebSocket upgrade. It may return an error, which the worker renders as
// a 500 response carrying the error text.
type Handler func(ctx context.Context, req *Request) (*Response, error)
