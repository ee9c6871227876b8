package httpmsg

import (
	"net/url"
	"strings"
)

// Query is an ordered multimap of query-string parameters, preserving
// duplicate keys in the order they appeared on the wire.
type Query struct {
	order []string
	vals  map[string][]string
}

// NewQuery returns an empty Query.
func NewQuery() *Query {
	return &Query{vals: make(map[string][]string)}
}

func (q *Query) add(key, value string) {
	if _, ok := q.vals[key]; !ok {
		q.order = append(q.order, key)
	}
	q.vals[key] = append(q.vals[key], value)
}

// Get returns the first value for key, or "" if absent.
func (q *Query) Get(key string) string {
	vv := q.vals[key]
	if len(vv) == 0 {
		return ""
	}
	return vv[0]
}

// Values returns all values for key in order.
func (q *Query) Values(key string) []string {
	return q.vals[key]
}

// Keys returns the distinct keys in first-seen order.
func (q *Query) Keys() []string {
	out := make([]string, len(q.order))
	copy(out, q.order)
	return out
}

// parseQuery parses a raw query string (without the leading '?') into an
// ordered multimap, percent-decoding both keys and values.
func parseQuery(raw string) *Query {
	q := NewQuery()
	if raw == "" {
		return q
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value := pair, ""
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key, value = pair[:idx], pair[idx+1:]
		}
		dk, err := url.QueryUnescape(key)
		if err != nil {
			dk = key
		}
		dv, err := url.QueryUnescape(value)
		if err != nil {
			dv = value
		}
		q.add(dk, dv)
	}
	return q
}
