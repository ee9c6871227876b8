package httpmsg

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"wsforge/netio"
)

// Request is an immutable decoded HTTP/1.x request.
type Request struct {
	Version string
	Method  string
	Path    string // percent-decoded, no query string
	Query   *Query
	Header  *Header
	Body    []byte
}

// IsHead reports whether the request method is HEAD.
func (r *Request) IsHead() bool {
	return r.Method == "HEAD"
}

// ParseRequest decodes a single HTTP/1.x request from lr. maxBodyBytes
// bounds the Content-Length the parser will honor; a declared length above
// it is a ProtocolError (the worker maps this to 413, not 400).
func ParseRequest(ctx context.Context, lr *netio.Reader, maxBodyBytes int64) (*Request, error) {
	line, err := lr.ReadLine(ctx, true)
	if err != nil {
		return nil, err
	}

	method, target, version, err := splitRequestLine(line)
	if err != nil {
		return nil, err
	}

	header, err := readHeaders(ctx, lr)
	if err != nil {
		return nil, err
	}

	if header.Count("Transfer-Encoding") > 0 {
		return nil, protoErr("chunked transfer encoding is not supported")
	}

	body, err := readBody(ctx, lr, header, maxBodyBytes)
	if err != nil {
		return nil, err
	}

	path, query := splitTarget(target)

	return &Request{
		Version: version,
		Method:  strings.ToUpper(method),
		Path:    path,
		Query:   query,
		Header:  header,
		Body:    body,
	}, nil
}

// splitRequestLine splits on the first space and the last space, tolerating
// extra internal whitespace in the target at the cost of mis-parsing
// targets that contain literal spaces.
func splitRequestLine(line string) (method, target, version string, err error) {
	first := strings.IndexByte(line, ' ')
	last := strings.LastIndexByte(line, ' ')
	if first < 0 || last < 0 || first == last {
		return "", "", "", protoErr("malformed request line")
	}
	method = line[:first]
	target = line[first+1 : last]
	version = line[last+1:]
	if method == "" || target == "" || version == "" {
		return "", "", "", protoErr("malformed request line")
	}
	return method, target, version, nil
}

func readHeaders(ctx context.Context, lr *netio.Reader) (*Header, error) {
	h := NewHeader()
	for {
		line, err := lr.ReadLine(ctx, true)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return h, nil
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, protoErr("malformed header line: " + line)
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		h.Add(name, value)
	}
}

func readBody(ctx context.Context, lr *netio.Reader, h *Header, maxBodyBytes int64) ([]byte, error) {
	n := h.Count("Content-Length")
	if n == 0 {
		return nil, nil
	}
	if n > 1 {
		return nil, protoErr("duplicate Content-Length header")
	}
	length, err := strconv.ParseInt(h.Get("Content-Length"), 10, 64)
	if err != nil || length < 0 {
		return nil, protoErr("malformed Content-Length header")
	}
	if length > maxBodyBytes {
		return nil, &ProtocolError{Reason: "request body exceeds configured limit", oversize: true}
	}
	if length == 0 {
		return nil, nil
	}
	return lr.ReadRemaining(ctx, int(length))
}

func splitTarget(target string) (string, *Query) {
	rawPath, rawQuery := target, ""
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		rawPath, rawQuery = target[:idx], target[idx+1:]
	}
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		path = rawPath
	}
	return path, parseQuery(rawQuery)
}
