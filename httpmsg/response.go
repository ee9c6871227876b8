package httpmsg

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// ServerBanner is the value sent in every response's Server header.
const ServerBanner = "wsforge"

// ExtraHeader is one caller-supplied header appended after the standard
// response headers, in insertion order.
type ExtraHeader struct {
	Name  string
	Value string
}

// Response is a handler-produced HTTP response, written exactly once.
type Response struct {
	StatusCode   int
	StatusReason string
	ContentType  string
	ExtraHeaders []ExtraHeader
	Body         []byte
}

// NewResponse builds a Response with a status text looked up from the
// standard reason phrases; pass "" to ContentType for no content-type.
func NewResponse(statusCode int, contentType string, body []byte) *Response {
	return &Response{
		StatusCode:   statusCode,
		StatusReason: statusText(statusCode),
		ContentType:  contentType,
		Body:         body,
	}
}

// WriteResponse serializes resp to w per the non-upgrade wire format:
// HTTP/1.0 status line, Server/Content-Type/Content-Length/Date headers,
// always Connection: close, then any extra headers, then the body (omitted
// for HEAD requests, which still carry Content-Length).
func WriteResponse(w io.Writer, resp *Response, suppressBody bool) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.0 %d %s\r\n", resp.StatusCode, resp.StatusReason)
	fmt.Fprintf(&buf, "Server: %s\r\n", ServerBanner)
	if resp.ContentType != "" {
		fmt.Fprintf(&buf, "Content-Type: %s; charset=UTF-8\r\n", resp.ContentType)
	}
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(resp.Body))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123))
	io.WriteString(&buf, "Connection: close\r\n")
	for _, h := range resp.ExtraHeaders {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, h.Value)
	}
	io.WriteString(&buf, "\r\n")
	if !suppressBody {
		buf.Write(resp.Body)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}
