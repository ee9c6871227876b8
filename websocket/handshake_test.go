package websocket

import (
	"bytes"
	"strings"
	"testing"

	"wsforge/httpmsg"
)

func TestComputeAcceptKeyRFCVector(t *testing.T) {
	got := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func upgradeRequest() *httpmsg.Request {
	h := httpmsg.NewHeader()
	h.Set("Host", "x")
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	h.Set("Sec-WebSocket-Version", "13")
	return &httpmsg.Request{Method: "GET", Version: "HTTP/1.1", Path: "/ws", Header: h}
}

func TestIsUpgradeAccepts(t *testing.T) {
	if !IsUpgrade(upgradeRequest()) {
		t.Fatal("expected upgrade request to qualify")
	}
}

func TestIsUpgradeRejectsWrongVersion(t *testing.T) {
	req := upgradeRequest()
	req.Header.Set("Sec-WebSocket-Version", "8")
	if IsUpgrade(req) {
		t.Fatal("expected rejection for wrong version")
	}
}

func TestIsUpgradeRejectsNonGet(t *testing.T) {
	req := upgradeRequest()
	req.Method = "POST"
	if IsUpgrade(req) {
		t.Fatal("expected rejection for non-GET method")
	}
}

func TestIsUpgradeRejectsMissingKey(t *testing.T) {
	req := upgradeRequest()
	req.Header.Set("Sec-WebSocket-Key", "")
	if IsUpgrade(req) {
		t.Fatal("expected rejection for missing key")
	}
}

func TestWriteUpgradeResponseContainsAcceptKey(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUpgradeResponse(&buf, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "HTTP/1.1 101 Switching Protocols\r\n") {
		t.Fatalf("bad status line: %q", out)
	}
	if !strings.Contains(out, "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n") {
		t.Fatalf("missing accept key: %q", out)
	}
}
