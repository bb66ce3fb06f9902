package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "hcd/internal/errors"
	"hcd/util"
)

func localSpec(cfg map[string]any) Spec {
	if cfg == nil {
		cfg = map[string]any{}
	}
	if _, ok := cfg["host"]; !ok {
		cfg["host"] = "127.0.0.1"
	}
	if _, ok := cfg["port"]; !ok {
		cfg["port"] = 0
	}
	return Spec{Listener: "test", Config: cfg, Logger: util.NewLogger(0)}
}

// TestTCPBinder_Accept verifies that accepted connections reach the
// handler and Close stops the accept loop.
func TestTCPBinder_Accept(t *testing.T) {
	got := make(chan string, 1)
	spec := localSpec(nil)
	spec.Handler = func(_ context.Context, listener string, conn net.Conn) {
		defer conn.Close()
		buf := make([]byte, 16)
		n, _ := conn.Read(buf)
		got <- listener + ":" + string(buf[:n])
	}

	h, err := TCPBinder{}.Bind(context.Background(), spec)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	conn, err := net.DialTimeout("tcp", h.Addr(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Write([]byte("ping")) //nolint:errcheck
	conn.Close()

	select {
	case s := <-got:
		if s != "test:ping" {
			t.Errorf("handler got %q", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler not called")
	}

	if err := h.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	// Second close is a no-op.
	h.Close() //nolint:errcheck

	if _, err := net.DialTimeout("tcp", h.Addr(), 500*time.Millisecond); err == nil {
		t.Error("dial after close should fail")
	}
}

// TestTCPBinder_AddressInUse verifies a bind conflict surfaces as a
// NetworkError.
func TestTCPBinder_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	_, err = TCPBinder{}.Bind(context.Background(), localSpec(map[string]any{"port": port}))
	if err == nil {
		t.Fatal("expected bind error")
	}
	var ne *ncerr.NetworkError
	if !errors.As(err, &ne) || ne.Op != "listen" {
		t.Errorf("want listen NetworkError, got %v", err)
	}
}

func TestSpec_Address(t *testing.T) {
	tests := []struct {
		name    string
		cfg     map[string]any
		want    string
		wantErr bool
	}{
		{"default host", map[string]any{"port": 80}, "0.0.0.0:80", false},
		{"explicit host", map[string]any{"host": "::1", "port": 443}, "[::1]:443", false},
		{"missing port", map[string]any{}, "", true},
		{"too large", map[string]any{"port": 70000}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Spec{Config: tt.cfg}.Address()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUDPBinder(t *testing.T) {
	h, err := UDPBinder{}.Bind(context.Background(), localSpec(nil))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	conn, err := net.Dial("udp", h.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Write([]byte("datagram")) //nolint:errcheck
	conn.Close()

	if err := h.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestHTTPBinder_URIs(t *testing.T) {
	h, err := HTTPBinder{}.Bind(context.Background(), localSpec(map[string]any{
		"uris": "/a, /b",
	}))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer h.Close()

	client := &http.Client{Timeout: 2 * time.Second}
	tests := []struct {
		path string
		want int
	}{
		{"/a", http.StatusOK},
		{"/b", http.StatusOK},
		{"/c", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := client.Get(fmt.Sprintf("http://%s%s", h.Addr(), tt.path))
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSSHBinder_PasswordAuth(t *testing.T) {
	h, err := SSHBinder{}.Bind(context.Background(), localSpec(map[string]any{
		"password": "hunter2",
	}))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer h.Close()

	dial := func(pass string) error {
		client, err := ssh.Dial("tcp", h.Addr(), &ssh.ClientConfig{
			User:            "operator",
			Auth:            []ssh.AuthMethod{ssh.Password(pass)},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         2 * time.Second,
		})
		if err != nil {
			return err
		}
		return client.Close()
	}

	if err := dial("hunter2"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := dial("wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestQUICBinder_BindAndClose(t *testing.T) {
	h, err := QUICBinder{}.Bind(context.Background(), localSpec(nil))
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if h.Addr() == "" {
		t.Error("empty address")
	}
	if err := h.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestTLSConfig_CertWithoutKey(t *testing.T) {
	_, err := tlsConfig(Spec{Config: map[string]any{"cert": "/tmp/cert.pem"}})
	if err == nil {
		t.Fatal("expected error for cert without key")
	}
}
