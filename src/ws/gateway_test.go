package ws

import (
	"net/http"
	"testing"
)

func TestCheckOriginAllowsConfiguredOrigin(t *testing.T) {
	check := CheckOrigin([]string{"http://localhost:3000"})
	req, _ := http.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	if !check(req) {
		t.Fatalf("expected configured origin to be allowed")
	}
}

func TestCheckOriginRejectsUnknownOrigin(t *testing.T) {
	check := CheckOrigin([]string{"http://localhost:3000"})
	req, _ := http.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://evil.example")
	if check(req) {
		t.Fatalf("expected unknown origin to be rejected")
	}
}

func TestCheckOriginAllowsMissingOriginHeader(t *testing.T) {
	check := CheckOrigin([]string{"http://localhost:3000"})
	req, _ := http.NewRequest("GET", "/ws", nil)
	if !check(req) {
		t.Fatalf("expected requests without an Origin header to be allowed")
	}
}
